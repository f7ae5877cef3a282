package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapKind distingue las tres rutas posibles de un swap del ledger. El dispatch
// dinámico a targets externos del protocolo original se modela como variante
// etiquetada interpretada por el engine, nunca como una llamada arbitraria.
type SwapKind uint8

const (
	// SwapInternal usa el pool interno del par con el fee tier indicado.
	SwapInternal SwapKind = iota
	// SwapExternal delega en un agregador externo; requiere que el par
	// (target, selector) esté en la whitelist del owner.
	SwapExternal
	// SwapFlashRouted financia la recompra del repay con flash loans según Routes.
	SwapFlashRouted
)

// ExternalSwapCall describe una llamada a un agregador externo de swaps.
// La whitelist se indexa por (Target, Selector): aprobar un target no aprueba
// todos sus métodos.
type ExternalSwapCall struct {
	Target   common.Address
	Selector [4]byte
	AmountIn *big.Int
}

// FlashLoanRoute es una fuente de flash loan elegida por el caller para
// financiar la recompra del saleToken durante un repay.
type FlashLoanRoute struct {
	// Protocol identifica el protocolo de lending origen ("aave", "uniswap"...).
	Protocol string
	// Token y FeeTier localizan la fuente concreta dentro del protocolo.
	Token   common.Address
	FeeTier uint32
}

// FlashLoanRoutes agrupa las rutas de un repay. Si Strict es true y ninguna
// ruta puede servir el importe, el repay entero aborta en lugar de caer al
// swap interno.
type FlashLoanRoutes struct {
	Strict bool
	Routes []FlashLoanRoute
}
