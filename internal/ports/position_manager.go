package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// PositionManager es el custodio de las posiciones NFT de liquidez (colaborador
// externo del ledger). El ledger lo trata como fuente/sumidero de liquidez
// indexado por token id y confía en su contabilidad.
type PositionManager interface {
	// OwnerOf devuelve el dueño actual de la posición.
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)

	// Position devuelve los parámetros del pool y la liquidez de la posición.
	Position(ctx context.Context, tokenID uint64) (domain.PositionInfo, error)

	// DecreaseLiquidity retira liquidez y devuelve los importes (token0, token1)
	// liberados a precio actual del pool.
	DecreaseLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (amount0, amount1 *big.Int, err error)

	// IncreaseLiquidity restaura liquidez en la posición aportando los importes
	// necesarios de ambos tokens. Devuelve los importes consumidos.
	IncreaseLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (amount0, amount1 *big.Int, err error)

	// AmountsForLiquidity cotiza, sin mutar estado, los importes (token0, token1)
	// equivalentes a una liquidez de la posición a precio actual.
	AmountsForLiquidity(ctx context.Context, tokenID uint64, liquidity *big.Int) (amount0, amount1 *big.Int, err error)
}
