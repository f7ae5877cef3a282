package ledger

// helpers_test.go — colaboradores falsos para los tests del engine: un mercado
// plano a precio 1:1 con fee de swap configurable, de modo que cada importe del
// flujo de borrow/repay es calculable a mano.

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
)

var (
	testOwner      = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testLender1    = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	testLender2    = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	testLiquidator = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

func (c *fakeClock) advance(seconds int64) { c.now += seconds }

// fakeMarket implementa PositionManager y Swapper sobre un pool plano 1:1:
// una liquidez L vale (L/2, L/2) en ambos tokens y el spot es la identidad.
type fakeMarket struct {
	positions map[uint64]*domain.PositionInfo
	swapFeeBP int64
}

func newFakeMarket(swapFeeBP int64) *fakeMarket {
	return &fakeMarket{
		positions: make(map[uint64]*domain.PositionInfo),
		swapFeeBP: swapFeeBP,
	}
}

func (m *fakeMarket) seed(tokenID uint64, owner common.Address, liquidity int64) {
	m.positions[tokenID] = &domain.PositionInfo{
		TokenID:   tokenID,
		Owner:     owner,
		Token0:    testHold,
		Token1:    testSale,
		FeeTier:   3000,
		Liquidity: big.NewInt(liquidity),
	}
}

func (m *fakeMarket) OwnerOf(_ context.Context, tokenID uint64) (common.Address, error) {
	return m.positions[tokenID].Owner, nil
}

func (m *fakeMarket) Position(_ context.Context, tokenID uint64) (domain.PositionInfo, error) {
	p := m.positions[tokenID]
	out := *p
	out.Liquidity = new(big.Int).Set(p.Liquidity)
	return out, nil
}

func halves(liquidity *big.Int) (*big.Int, *big.Int) {
	half := new(big.Int).Quo(liquidity, big.NewInt(2))
	return half, new(big.Int).Set(half)
}

func (m *fakeMarket) AmountsForLiquidity(_ context.Context, _ uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	a0, a1 := halves(liquidity)
	return a0, a1, nil
}

func (m *fakeMarket) DecreaseLiquidity(_ context.Context, tokenID uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	p := m.positions[tokenID]
	p.Liquidity.Sub(p.Liquidity, liquidity)
	a0, a1 := halves(liquidity)
	return a0, a1, nil
}

func (m *fakeMarket) IncreaseLiquidity(_ context.Context, tokenID uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	p := m.positions[tokenID]
	p.Liquidity.Add(p.Liquidity, liquidity)
	a0, a1 := halves(liquidity)
	return a0, a1, nil
}

func (m *fakeMarket) QuoteSpotValue(_ context.Context, _, _ common.Address, _ uint32, amountIn *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amountIn), nil
}

func (m *fakeMarket) QuoteExactInput(_ context.Context, _, _ common.Address, _ uint32, amountIn *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(amountIn, big.NewInt(domain.BasisPoints-m.swapFeeBP))
	return out.Quo(out, big.NewInt(domain.BasisPoints)), nil
}

func (m *fakeMarket) QuoteExactOutput(_ context.Context, _, _ common.Address, _ uint32, amountOut *big.Int) (*big.Int, error) {
	num := new(big.Int).Mul(amountOut, big.NewInt(domain.BasisPoints))
	den := big.NewInt(domain.BasisPoints - m.swapFeeBP)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

func (m *fakeMarket) SwapExactInput(ctx context.Context, in, out common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	return m.QuoteExactInput(ctx, in, out, feeTier, amountIn)
}

func (m *fakeMarket) SwapExactOutput(ctx context.Context, in, out common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error) {
	return m.QuoteExactOutput(ctx, in, out, feeTier, amountOut)
}

// fakeExternal simula un agregador con spread fijo sobre el spot.
type fakeExternal struct {
	spreadBP int64
	calls    int
}

func (e *fakeExternal) Swap(_ context.Context, call domain.ExternalSwapCall, _, _ common.Address) (*big.Int, error) {
	e.calls++
	out := new(big.Int).Mul(call.AmountIn, big.NewInt(domain.BasisPoints-e.spreadBP))
	return out.Quo(out, big.NewInt(domain.BasisPoints)), nil
}

// fakeFlash entrega siempre el préstamo al premium configurado.
type fakeFlash struct {
	premiumBP int64
	calls     int
}

func (f *fakeFlash) premium(amount *big.Int) *big.Int {
	p := new(big.Int).Mul(amount, big.NewInt(f.premiumBP))
	return p.Quo(p, big.NewInt(domain.BasisPoints))
}

func (f *fakeFlash) QuotePremium(_ context.Context, _ domain.FlashLoanRoutes, _ common.Address, amount *big.Int) (*big.Int, error) {
	return f.premium(amount), nil
}

func (f *fakeFlash) Supply(_ context.Context, _ domain.FlashLoanRoutes, _ common.Address, amount *big.Int, fn func(premium *big.Int) error) error {
	f.calls++
	return fn(f.premium(amount))
}

// newTestLedger construye un ledger sobre el mercado plano con dos posiciones
// de 1M de liquidez (token ids 1 y 2, de lender1 y lender2). Swap fee 1%.
func newTestLedger(t *testing.T) (*Ledger, *fakeClock, *fakeMarket, *fakeExternal, *fakeFlash) {
	t.Helper()
	clock := &fakeClock{now: 1_000_000}
	market := newFakeMarket(100)
	market.seed(1, testLender1, 1_000_000)
	market.seed(2, testLender2, 1_000_000)
	external := &fakeExternal{spreadBP: 50}
	flash := &fakeFlash{}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := New(log, clock, market, market, external, flash, testOwner)
	require.NoError(t, err)
	return l, clock, market, external, flash
}

// openTestDebt abre la deuda canónica de los tests: 600k de liquidez de la
// posición 1 sobre (sale→hold). Con el mercado plano: borrowed=600000,
// margin=3000, entranceFee=600, bonus=9000, colateral=600 (1 día justo).
func openTestDebt(t *testing.T, l *Ledger, clock *fakeClock) *BorrowResult {
	t.Helper()
	res, err := l.Borrow(context.Background(), BorrowParams{
		Borrower:  testBorrower,
		SaleToken: testSale,
		HoldToken: testHold,
		Loans:     []domain.LoanInfo{loan(1, 600_000)},
		Deadline:  clock.now + 300,
	})
	require.NoError(t, err)
	return res
}
