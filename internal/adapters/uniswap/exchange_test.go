package uniswap

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0x0000000000000000000000000000000000000002")
	lender = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

// q96big es 2^96: sqrt-price de un pool a precio 1:1.
func q96big() *big.Int { return new(big.Int).Lsh(big.NewInt(1), 96) }

func halfQ96() *big.Int { return new(big.Int).Rsh(q96big(), 1) }

func doubleQ96() *big.Int { return new(big.Int).Lsh(q96big(), 1) }

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newSeededExchange crea un pool 1:1 con fee 0.3% y una posición de rango
// ancho [P/2, 2P] con la liquidez dada.
func newSeededExchange(t *testing.T, liquidity int64) (*Exchange, uint64) {
	t.Helper()
	e := NewExchange(testLog())
	require.NoError(t, e.CreatePool(tokenA, tokenB, 3000, q96big()))
	id, err := e.MintPosition(lender, tokenA, tokenB, 3000, halfQ96(), doubleQ96(), big.NewInt(liquidity))
	require.NoError(t, err)
	return e, id
}

// --- CreatePool ---

func TestCreatePool_Duplicate(t *testing.T) {
	e := NewExchange(testLog())
	require.NoError(t, e.CreatePool(tokenA, tokenB, 3000, q96big()))

	// El orden de los tokens no importa: es el mismo pool.
	err := e.CreatePool(tokenB, tokenA, 3000, q96big())
	assert.ErrorIs(t, err, ErrPoolExists)

	// Otro fee tier sí es otro pool.
	assert.NoError(t, e.CreatePool(tokenA, tokenB, 500, q96big()))
}

func TestCreatePool_Validation(t *testing.T) {
	e := NewExchange(testLog())
	assert.ErrorIs(t, e.CreatePool(tokenA, tokenA, 3000, q96big()), ErrInvalidPoolParams)
	assert.ErrorIs(t, e.CreatePool(tokenA, tokenB, 3000, big.NewInt(0)), ErrInvalidPoolParams)
	assert.ErrorIs(t, e.CreatePool(common.Address{}, tokenB, 3000, q96big()), ErrInvalidPoolParams)
}

// --- MintPosition ---

func TestMintPosition_SequentialIDs(t *testing.T) {
	e, first := newSeededExchange(t, 1_000_000)
	assert.Equal(t, uint64(1), first)

	second, err := e.MintPosition(lender, tokenA, tokenB, 3000, halfQ96(), doubleQ96(), big.NewInt(500_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second)
}

func TestMintPosition_Validation(t *testing.T) {
	e := NewExchange(testLog())
	require.NoError(t, e.CreatePool(tokenA, tokenB, 3000, q96big()))

	_, err := e.MintPosition(lender, tokenA, tokenB, 500, halfQ96(), doubleQ96(), big.NewInt(1))
	assert.ErrorIs(t, err, ErrPoolNotFound)

	_, err = e.MintPosition(lender, tokenA, tokenB, 3000, doubleQ96(), halfQ96(), big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidPositionRange)

	_, err = e.MintPosition(lender, tokenA, tokenB, 3000, halfQ96(), doubleQ96(), big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPosition_CanonicalTokenOrder(t *testing.T) {
	e := NewExchange(testLog())
	require.NoError(t, e.CreatePool(tokenB, tokenA, 3000, q96big()))
	id, err := e.MintPosition(lender, tokenB, tokenA, 3000, halfQ96(), doubleQ96(), big.NewInt(1_000_000))
	require.NoError(t, err)

	pos, err := e.Position(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, tokenA, pos.Token0)
	assert.Equal(t, tokenB, pos.Token1)
	assert.Equal(t, lender, pos.Owner)
	assert.Equal(t, "1000000", pos.Liquidity.String())
}

func TestOwnerOf_UnknownToken(t *testing.T) {
	e := NewExchange(testLog())
	_, err := e.OwnerOf(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

// --- liquidity amounts ---

func TestAmountsForLiquidity_BalancedAtMidRange(t *testing.T) {
	e, id := newSeededExchange(t, 1_000_000)

	// A precio 1:1 en el centro del rango [P/2, 2P], la liquidez se parte
	// exactamente en mitades.
	a0, a1, err := e.AmountsForLiquidity(context.Background(), id, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "500000", a0.String())
	assert.Equal(t, "500000", a1.String())
}

func TestDecreaseIncrease_RoundTrip(t *testing.T) {
	e, id := newSeededExchange(t, 1_000_000)

	a0, a1, err := e.DecreaseLiquidity(context.Background(), id, big.NewInt(600_000))
	require.NoError(t, err)
	assert.Equal(t, "300000", a0.String())
	assert.Equal(t, "300000", a1.String())

	pos, err := e.Position(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "400000", pos.Liquidity.String())

	_, _, err = e.IncreaseLiquidity(context.Background(), id, big.NewInt(600_000))
	require.NoError(t, err)
	pos, err = e.Position(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "1000000", pos.Liquidity.String())
}

func TestDecreaseLiquidity_Overdraw(t *testing.T) {
	e, id := newSeededExchange(t, 1_000_000)
	_, _, err := e.DecreaseLiquidity(context.Background(), id, big.NewInt(1_000_001))
	assert.ErrorIs(t, err, ErrNotEnoughLiquidity)
}
