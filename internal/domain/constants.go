package domain

import "math/big"

// Constantes de precisión del protocolo. Todos los importes de colateral y fees
// se llevan internamente a precisión fija de 18 decimales, independientemente
// de los decimales nativos del token (WBTC=8, USDT=6, WETH=18...).
const (
	// BasisPoints es el denominador de todos los ratios en bps (10000 = 100%).
	BasisPoints = 10_000

	// SecondsPerDay es la base temporal del daily rate.
	SecondsPerDay = 86_400

	// MinDailyRateBP y MaxDailyRateBP acotan el daily rate configurable por pair.
	MinDailyRateBP = 2
	MaxDailyRateBP = 10_000

	// DefaultDailyRateBP es el rate inicial de un pair nunca configurado (0.1%/día).
	DefaultDailyRateBP = 10

	// DefaultEntranceFeeBP es el entrance fee inicial (0.1% del borrowed amount).
	DefaultEntranceFeeBP = 10

	// MaxEntranceFeeBP acota el entrance fee configurable por pair (10%).
	MaxEntranceFeeBP = 1_000

	// EntranceFeeDisabled es el valor centinela que desactiva el entrance fee
	// de un pair (no puede ser 0: 0 significa "usar el default").
	EntranceFeeDisabled = 1_001

	// MaxPlatformFeesBP acota la comisión de plataforma (20%).
	MaxPlatformFeesBP = 2_000

	// DefaultPlatformFeesBP es la comisión de plataforma inicial (20%).
	DefaultPlatformFeesBP = 2_000

	// MaxLiquidationBonusBP acota el bonus de liquidación por token.
	MaxLiquidationBonusBP = 1_000

	// DefaultLiquidationBonusBP es el bonus de liquidación si el token no tiene
	// override configurado (1.5%).
	DefaultLiquidationBonusBP = 150

	// MinBorrowedLiquidity es la liquidez mínima por loan: evita posiciones
	// polvo que no cubren ni el redondeo del accrual.
	MinBorrowedLiquidity = 100_000
)

// CollateralPrecision es el factor de precisión interna (1e18) de los balances
// de colateral y de los buckets de fees.
var CollateralPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var (
	bpsBig        = big.NewInt(BasisPoints)
	secondsPerDay = big.NewInt(SecondsPerDay)
	rateDenom     = new(big.Int).Mul(bpsBig, secondsPerDay) // 10000 * 86400
)
