package uniswap

// swapper.go — ejecución y cotización de swaps contra los pools simulados.
// Los quotes computan el mismo camino que el swap pero sin escribir el precio;
// la fee del tier se cobra sobre el input, como en el pool original.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// QuoteSpotValue valora amountIn a precio spot puro, sin fee ni impacto:
// amount * P para token0→token1, amount / P para token1→token0, con
// P = (sqrtPriceX96)^2 / 2^192.
func (e *Exchange) QuoteSpotValue(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, zeroForOne, amount, err := e.loadSwap(tokenIn, tokenOut, feeTier, amountIn)
	if err != nil {
		return nil, fmt.Errorf("uniswap.QuoteSpotValue: %w", err)
	}
	var out *ui.Int
	if zeroForOne {
		out = mulDiv(mulDiv(amount, p.sqrtPriceX96, q96), p.sqrtPriceX96, q96)
	} else {
		out = mulDiv(mulDiv(amount, q96, p.sqrtPriceX96), q96, p.sqrtPriceX96)
	}
	return out.ToBig(), nil
}

// QuoteExactInput devuelve el amountOut de un swap exact-input, fee incluida,
// sin ejecutarlo.
func (e *Exchange) QuoteExactInput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, zeroForOne, amount, err := e.loadSwap(tokenIn, tokenOut, feeTier, amountIn)
	if err != nil {
		return nil, fmt.Errorf("uniswap.QuoteExactInput: %w", err)
	}
	out, _, err := computeExactInput(p, zeroForOne, amount)
	if err != nil {
		return nil, fmt.Errorf("uniswap.QuoteExactInput: %w", err)
	}
	return out.ToBig(), nil
}

// QuoteExactOutput devuelve el amountIn que consumiría garantizar amountOut,
// fee incluida, sin ejecutarlo.
func (e *Exchange) QuoteExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, zeroForOne, amount, err := e.loadSwap(tokenIn, tokenOut, feeTier, amountOut)
	if err != nil {
		return nil, fmt.Errorf("uniswap.QuoteExactOutput: %w", err)
	}
	in, _, err := computeExactOutput(p, zeroForOne, amount)
	if err != nil {
		return nil, fmt.Errorf("uniswap.QuoteExactOutput: %w", err)
	}
	return in.ToBig(), nil
}

// SwapExactInput ejecuta el swap moviendo el precio del pool y devuelve el
// amountOut obtenido.
func (e *Exchange) SwapExactInput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, zeroForOne, amount, err := e.loadSwap(tokenIn, tokenOut, feeTier, amountIn)
	if err != nil {
		return nil, fmt.Errorf("uniswap.SwapExactInput: %w", err)
	}
	out, next, err := computeExactInput(p, zeroForOne, amount)
	if err != nil {
		return nil, fmt.Errorf("uniswap.SwapExactInput: %w", err)
	}
	p.sqrtPriceX96 = next
	return out.ToBig(), nil
}

// SwapExactOutput ejecuta un swap que garantiza amountOut y devuelve el
// amountIn consumido.
func (e *Exchange) SwapExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, zeroForOne, amount, err := e.loadSwap(tokenIn, tokenOut, feeTier, amountOut)
	if err != nil {
		return nil, fmt.Errorf("uniswap.SwapExactOutput: %w", err)
	}
	in, next, err := computeExactOutput(p, zeroForOne, amount)
	if err != nil {
		return nil, fmt.Errorf("uniswap.SwapExactOutput: %w", err)
	}
	p.sqrtPriceX96 = next
	return in.ToBig(), nil
}

func (e *Exchange) loadSwap(tokenIn, tokenOut common.Address, feeTier uint32, amount *big.Int) (*pool, bool, *ui.Int, error) {
	key := canonicalKey(tokenIn, tokenOut, feeTier)
	p, ok := e.pools[key]
	if !ok {
		return nil, false, nil, ErrPoolNotFound
	}
	value, err := fromBig(amount)
	if err != nil {
		return nil, false, nil, err
	}
	return p, tokenIn == key.token0, value, nil
}

// computeExactInput descuenta la fee del input, avanza el precio y devuelve
// (amountOut, precio siguiente).
func computeExactInput(p *pool, zeroForOne bool, amountIn *ui.Int) (*ui.Int, *ui.Int, error) {
	if p.liquidity.IsZero() {
		return nil, nil, ErrPriceOutOfRange
	}
	feeFactor := ui.NewInt(uint64(1_000_000 - p.feeTier))
	inLessFee := mulDiv(amountIn, feeFactor, e6)

	next := getNextSqrtPriceFromInput(p.sqrtPriceX96, p.liquidity, inLessFee, zeroForOne)
	if next.IsZero() {
		return nil, nil, ErrPriceOutOfRange
	}
	var out *ui.Int
	if zeroForOne {
		out = getAmount1Delta(next, p.sqrtPriceX96, p.liquidity, false)
	} else {
		out = getAmount0Delta(p.sqrtPriceX96, next, p.liquidity, false)
	}
	return out, next, nil
}

// computeExactOutput retrocede el precio hasta garantizar amountOut, computa el
// input sin fee (redondeo arriba) y lo infla por la fee del tier.
func computeExactOutput(p *pool, zeroForOne bool, amountOut *ui.Int) (*ui.Int, *ui.Int, error) {
	if p.liquidity.IsZero() {
		return nil, nil, ErrPriceOutOfRange
	}
	// Sanity: el output no puede exceder la reserva virtual del lado de salida.
	next := getNextSqrtPriceFromOutput(p.sqrtPriceX96, p.liquidity, amountOut, zeroForOne)
	if next.IsZero() || (zeroForOne && next.Cmp(p.sqrtPriceX96) > 0) || (!zeroForOne && next.Cmp(p.sqrtPriceX96) < 0) {
		return nil, nil, ErrPriceOutOfRange
	}
	var inNoFee *ui.Int
	if zeroForOne {
		inNoFee = getAmount0Delta(next, p.sqrtPriceX96, p.liquidity, true)
	} else {
		inNoFee = getAmount1Delta(p.sqrtPriceX96, next, p.liquidity, true)
	}
	feeFactor := ui.NewInt(uint64(1_000_000 - p.feeTier))
	in := mulDivRoundingUp(inNoFee, e6, feeFactor)
	return in, next, nil
}
