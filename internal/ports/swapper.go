package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// Swapper es el proveedor de swaps/quotes del pool interno. Quote no muta
// estado (se usa para dimensionar márgenes y fees antes de ejecutar); Swap
// ejecuta contra el pool con el fee tier dado.
type Swapper interface {
	// QuoteSpotValue valora amountIn de tokenIn en tokenOut a precio spot puro,
	// sin fee ni slippage. Es la base del borrowedAmount: el principal se mide a
	// valor de mercado, no a lo que rendiría el swap.
	QuoteSpotValue(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)

	// QuoteExactInput devuelve el amountOut que rendiría un swap exact-input,
	// fee del pool incluida, sin ejecutarlo.
	QuoteExactInput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)

	// QuoteExactOutput devuelve el amountIn que consumiría un swap que garantice
	// amountOut, fee incluida, sin ejecutarlo.
	QuoteExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error)

	// SwapExactInput ejecuta el swap y devuelve el amountOut real (fee incluida).
	SwapExactInput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)

	// SwapExactOutput ejecuta un swap que garantiza amountOut y devuelve el
	// amountIn consumido.
	SwapExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error)
}

// ExternalSwapper ejecuta swaps vía un agregador externo. El engine valida el
// par (target, selector) contra la whitelist ANTES de invocar: este puerto
// nunca ve llamadas no aprobadas.
type ExternalSwapper interface {
	Swap(ctx context.Context, call domain.ExternalSwapCall, tokenIn, tokenOut common.Address) (*big.Int, error)
}

// FlashLoanProvider agrega flash loans de varios protocolos de lending. Supply
// entrega el token dentro de la misma unidad atómica: fn recibe los fondos y,
// si devuelve error, el préstamo entero se deshace. QuotePremium anticipa el
// premium de esas mismas rutas sin ejecutar nada, para que el caller pueda
// presupuestar el coste real antes de mutar estado.
type FlashLoanProvider interface {
	QuotePremium(ctx context.Context, routes domain.FlashLoanRoutes, token common.Address, amount *big.Int) (*big.Int, error)
	Supply(ctx context.Context, routes domain.FlashLoanRoutes, token common.Address, amount *big.Int, fn func(premium *big.Int) error) error
}
