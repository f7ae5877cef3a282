package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
)

var (
	testBorrower = common.HexToAddress("0xb0b0000000000000000000000000000000000001")
	testSale     = common.HexToAddress("0x5a1e000000000000000000000000000000000001")
	testHold     = common.HexToAddress("0x401d000000000000000000000000000000000001")
)

func testKey() domain.BorrowingKey {
	return domain.ComputeBorrowingKey(testBorrower, testSale, testHold)
}

func loan(tokenID uint64, liquidity int64) domain.LoanInfo {
	return domain.LoanInfo{TokenID: tokenID, Liquidity: big.NewInt(liquidity)}
}

// --- add ---

func TestLoanBook_AddMergesSameToken(t *testing.T) {
	b := newLoanBook()
	key := testKey()

	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 300_000), loan(2, 200_000)})
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 100_000)})

	loans := b.loans(key)
	require.Len(t, loans, 2, "el mismo tokenId no duplica entradas")
	assert.Equal(t, "400000", loans[0].Liquidity.String())
	assert.Equal(t, "600000", b.totalLiquidity(key).String())
}

func TestLoanBook_LoansReturnsCopies(t *testing.T) {
	b := newLoanBook()
	key := testKey()
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 100_000)})

	got := b.loans(key)
	got[0].Liquidity.SetInt64(0)
	assert.Equal(t, "100000", b.loans(key)[0].Liquidity.String())
}

// --- committedFor ---

func TestLoanBook_CommittedForSpansDebts(t *testing.T) {
	b := newLoanBook()
	other := domain.ComputeBorrowingKey(testBorrower, testHold, testSale)

	b.add(testKey(), testBorrower, []domain.LoanInfo{loan(7, 250_000)})
	b.add(other, testBorrower, []domain.LoanInfo{loan(7, 150_000)})

	assert.Equal(t, "400000", b.committedFor(7).String())
	assert.Zero(t, b.committedFor(99).Sign())
}

// --- removeLoan ---

func TestLoanBook_RemoveLoan(t *testing.T) {
	b := newLoanBook()
	key := testKey()
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 100_000), loan(2, 200_000)})

	removed, ok := b.removeLoan(key, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), removed.TokenID)
	assert.Len(t, b.loans(key), 1)
	assert.Zero(t, b.committedFor(1).Sign(), "el índice inverso queda limpio")

	_, ok = b.removeLoan(key, 1)
	assert.False(t, ok)
}

// --- reduceLoans ---

func TestLoanBook_ReduceLoansProportional(t *testing.T) {
	b := newLoanBook()
	key := testKey()
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 400_000), loan(2, 200_000)})

	// Encoge un cuarto: 400000→300000, 200000→150000.
	b.reduceLoans(key, big.NewInt(1), big.NewInt(4))

	loans := b.loans(key)
	require.Len(t, loans, 2)
	assert.Equal(t, "300000", loans[0].Liquidity.String())
	assert.Equal(t, "150000", loans[1].Liquidity.String())
	assert.Equal(t, "450000", b.totalLiquidity(key).String())
}

func TestLoanBook_ReduceLoansToZeroDropsDebt(t *testing.T) {
	b := newLoanBook()
	key := testKey()
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 100_000)})

	b.reduceLoans(key, big.NewInt(1), big.NewInt(1))

	assert.Empty(t, b.loans(key))
	assert.Zero(t, b.committedFor(1).Sign())
	assert.Empty(t, b.keysForToken(1))
}

// --- removeDebt ---

func TestLoanBook_RemoveDebtCleansIndices(t *testing.T) {
	b := newLoanBook()
	key := testKey()
	b.add(key, testBorrower, []domain.LoanInfo{loan(1, 100_000), loan(2, 200_000)})

	b.removeDebt(key, testBorrower)

	assert.Empty(t, b.loans(key))
	assert.Empty(t, b.keysForToken(1))
	assert.Empty(t, b.keysForToken(2))
	assert.Empty(t, b.keysForBorrower(testBorrower))
}

func TestLoanBook_KeysForBorrower(t *testing.T) {
	b := newLoanBook()
	other := domain.ComputeBorrowingKey(testBorrower, testHold, testSale)

	b.add(testKey(), testBorrower, []domain.LoanInfo{loan(1, 100_000)})
	b.add(other, testBorrower, []domain.LoanInfo{loan(2, 100_000)})

	assert.Len(t, b.keysForBorrower(testBorrower), 2)
}
