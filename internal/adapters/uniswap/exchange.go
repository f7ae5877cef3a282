package uniswap

// exchange.go — mercado V3 simulado: pools de rango concentrado con precio
// Q64.96 y posiciones NFT. Implementa los puertos PositionManager y Swapper
// del ledger. Los swaps mueven el precio dentro del rango activo del pool; el
// cruce de ticks no se simula: los pools se siembran con liquidez de rango
// ancho y los escenarios operan lejos de los bordes.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"

	"github.com/alejandrodnm/levsim/internal/domain"
)

var (
	ErrPoolNotFound         = errors.New("uniswap: pool not found")
	ErrPoolExists           = errors.New("uniswap: pool already exists")
	ErrPositionNotFound     = errors.New("uniswap: position not found")
	ErrNotEnoughLiquidity   = errors.New("uniswap: position liquidity below requested")
	ErrInvalidAmount        = errors.New("uniswap: amount must be non-negative")
	ErrAmountOverflow       = errors.New("uniswap: amount exceeds uint256")
	ErrPriceOutOfRange      = errors.New("uniswap: swap pushes price out of seeded range")
	ErrInvalidPoolParams    = errors.New("uniswap: malformed pool parameters")
	ErrInvalidPositionRange = errors.New("uniswap: malformed position range")
)

type poolKey struct {
	token0, token1 common.Address
	feeTier        uint32
}

type pool struct {
	token0, token1 common.Address
	feeTier        uint32
	sqrtPriceX96   *ui.Int
	liquidity      *ui.Int
}

type position struct {
	owner          common.Address
	key            poolKey
	sqrtLowerX96   *ui.Int
	sqrtUpperX96   *ui.Int
	liquidity      *ui.Int
}

// Exchange es el mercado simulado completo: todos los pools y posiciones de un
// run. Seguro para uso concurrente.
type Exchange struct {
	mu          sync.Mutex
	log         *slog.Logger
	pools       map[poolKey]*pool
	positions   map[uint64]*position
	nextTokenID uint64
}

// NewExchange crea un mercado vacío.
func NewExchange(log *slog.Logger) *Exchange {
	return &Exchange{
		log:         log.With("component", "uniswap"),
		pools:       make(map[poolKey]*pool),
		positions:   make(map[uint64]*position),
		nextTokenID: 1,
	}
}

// CreatePool siembra un pool con su precio inicial (sqrt Q64.96). tokenA/tokenB
// se ordenan canónicamente; el precio se interpreta ya ordenado.
func (e *Exchange) CreatePool(tokenA, tokenB common.Address, feeTier uint32, sqrtPriceX96 *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tokenA == tokenB || tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return fmt.Errorf("uniswap.CreatePool: %w", ErrInvalidPoolParams)
	}
	price, err := fromBig(sqrtPriceX96)
	if err != nil || price.IsZero() {
		return fmt.Errorf("uniswap.CreatePool: sqrt price: %w", ErrInvalidPoolParams)
	}
	key := canonicalKey(tokenA, tokenB, feeTier)
	if _, ok := e.pools[key]; ok {
		return fmt.Errorf("uniswap.CreatePool: %w", ErrPoolExists)
	}
	e.pools[key] = &pool{
		token0:       key.token0,
		token1:       key.token1,
		feeTier:      feeTier,
		sqrtPriceX96: price,
		liquidity:    new(ui.Int),
	}
	e.log.Debug("pool created", "token0", key.token0.Hex(), "token1", key.token1.Hex(), "fee", feeTier)
	return nil
}

// MintPosition acuña una posición NFT con el rango [sqrtLower, sqrtUpper] y la
// liquidez dada, y devuelve su token id. La liquidez entra al pool si el precio
// actual cae dentro del rango.
func (e *Exchange) MintPosition(owner, tokenA, tokenB common.Address, feeTier uint32, sqrtLowerX96, sqrtUpperX96, liquidity *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := canonicalKey(tokenA, tokenB, feeTier)
	p, ok := e.pools[key]
	if !ok {
		return 0, fmt.Errorf("uniswap.MintPosition: %w", ErrPoolNotFound)
	}
	lower, err := fromBig(sqrtLowerX96)
	if err != nil {
		return 0, fmt.Errorf("uniswap.MintPosition: lower bound: %w", err)
	}
	upper, err := fromBig(sqrtUpperX96)
	if err != nil {
		return 0, fmt.Errorf("uniswap.MintPosition: upper bound: %w", err)
	}
	if lower.IsZero() || lower.Cmp(upper) >= 0 {
		return 0, fmt.Errorf("uniswap.MintPosition: %w", ErrInvalidPositionRange)
	}
	liq, err := fromBig(liquidity)
	if err != nil || liq.IsZero() {
		return 0, fmt.Errorf("uniswap.MintPosition: liquidity: %w", ErrInvalidAmount)
	}

	id := e.nextTokenID
	e.nextTokenID++
	e.positions[id] = &position{
		owner:        owner,
		key:          key,
		sqrtLowerX96: lower,
		sqrtUpperX96: upper,
		liquidity:    liq,
	}
	if inRange(p.sqrtPriceX96, lower, upper) {
		p.liquidity.Add(p.liquidity, liq)
	}
	e.log.Debug("position minted", "token_id", id, "owner", owner.Hex(), "liquidity", liq.Dec())
	return id, nil
}

// OwnerOf devuelve el dueño de la posición.
func (e *Exchange) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("uniswap.OwnerOf: token %d: %w", tokenID, ErrPositionNotFound)
	}
	return pos.owner, nil
}

// Position devuelve la vista de dominio de la posición.
func (e *Exchange) Position(ctx context.Context, tokenID uint64) (domain.PositionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[tokenID]
	if !ok {
		return domain.PositionInfo{}, fmt.Errorf("uniswap.Position: token %d: %w", tokenID, ErrPositionNotFound)
	}
	return domain.PositionInfo{
		TokenID:   tokenID,
		Owner:     pos.owner,
		Token0:    pos.key.token0,
		Token1:    pos.key.token1,
		FeeTier:   pos.key.feeTier,
		Liquidity: pos.liquidity.ToBig(),
	}, nil
}

// AmountsForLiquidity cotiza los importes (token0, token1) equivalentes a la
// liquidez dentro del rango de la posición, a precio actual. Read-only.
func (e *Exchange) AmountsForLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, p, liq, err := e.loadPosition(tokenID, liquidity)
	if err != nil {
		return nil, nil, fmt.Errorf("uniswap.AmountsForLiquidity: %w", err)
	}
	amount0, amount1 := amountsInRange(p.sqrtPriceX96, pos.sqrtLowerX96, pos.sqrtUpperX96, liq, false)
	return amount0.ToBig(), amount1.ToBig(), nil
}

// DecreaseLiquidity retira liquidez de la posición y devuelve los importes
// liberados (redondeo contra el retirador).
func (e *Exchange) DecreaseLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, p, liq, err := e.loadPosition(tokenID, liquidity)
	if err != nil {
		return nil, nil, fmt.Errorf("uniswap.DecreaseLiquidity: %w", err)
	}
	if pos.liquidity.Cmp(liq) < 0 {
		return nil, nil, fmt.Errorf("uniswap.DecreaseLiquidity: token %d: %w", tokenID, ErrNotEnoughLiquidity)
	}
	amount0, amount1 := amountsInRange(p.sqrtPriceX96, pos.sqrtLowerX96, pos.sqrtUpperX96, liq, false)
	pos.liquidity.Sub(pos.liquidity, liq)
	if inRange(p.sqrtPriceX96, pos.sqrtLowerX96, pos.sqrtUpperX96) {
		p.liquidity.Sub(p.liquidity, liq)
	}
	return amount0.ToBig(), amount1.ToBig(), nil
}

// IncreaseLiquidity repone liquidez en la posición y devuelve los importes
// consumidos (redondeo a favor del pool).
func (e *Exchange) IncreaseLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, p, liq, err := e.loadPosition(tokenID, liquidity)
	if err != nil {
		return nil, nil, fmt.Errorf("uniswap.IncreaseLiquidity: %w", err)
	}
	amount0, amount1 := amountsInRange(p.sqrtPriceX96, pos.sqrtLowerX96, pos.sqrtUpperX96, liq, true)
	pos.liquidity.Add(pos.liquidity, liq)
	if inRange(p.sqrtPriceX96, pos.sqrtLowerX96, pos.sqrtUpperX96) {
		p.liquidity.Add(p.liquidity, liq)
	}
	return amount0.ToBig(), amount1.ToBig(), nil
}

func (e *Exchange) loadPosition(tokenID uint64, liquidity *big.Int) (*position, *pool, *ui.Int, error) {
	pos, ok := e.positions[tokenID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("token %d: %w", tokenID, ErrPositionNotFound)
	}
	p, ok := e.pools[pos.key]
	if !ok {
		return nil, nil, nil, ErrPoolNotFound
	}
	liq, err := fromBig(liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	return pos, p, liq, nil
}

func canonicalKey(tokenA, tokenB common.Address, feeTier uint32) poolKey {
	if tokenB.Cmp(tokenA) < 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return poolKey{token0: tokenA, token1: tokenB, feeTier: feeTier}
}

func inRange(sqrtP, lower, upper *ui.Int) bool {
	return sqrtP.Cmp(lower) >= 0 && sqrtP.Cmp(upper) < 0
}

// amountsInRange calcula los importes equivalentes a liquidity con el precio
// acotado al rango de la posición, como el modifyPosition del pool original.
func amountsInRange(sqrtP, lower, upper, liquidity *ui.Int, roundUp bool) (*ui.Int, *ui.Int) {
	switch {
	case sqrtP.Cmp(lower) <= 0:
		return getAmount0Delta(lower, upper, liquidity, roundUp), new(ui.Int)
	case sqrtP.Cmp(upper) >= 0:
		return new(ui.Int), getAmount1Delta(lower, upper, liquidity, roundUp)
	default:
		return getAmount0Delta(sqrtP, upper, liquidity, roundUp),
			getAmount1Delta(lower, sqrtP, liquidity, roundUp)
	}
}

func fromBig(v *big.Int) (*ui.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	u, overflow := ui.FromBig(v)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return u, nil
}
