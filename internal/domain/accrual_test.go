package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- AccruedFee ---

func TestAccruedFee_OneFullDay(t *testing.T) {
	// 1000 unidades a 10 bp/día durante un día = 1 unidad (1e18).
	fee := AccruedFee(big.NewInt(1000), 10, SecondsPerDay)
	assert.Equal(t, "1000000000000000000", fee.String())
}

func TestAccruedFee_HalfDayIsHalf(t *testing.T) {
	full := AccruedFee(big.NewInt(1000), 10, SecondsPerDay)
	half := AccruedFee(big.NewInt(1000), 10, SecondsPerDay/2)
	assert.Equal(t, new(big.Int).Quo(full, big.NewInt(2)).String(), half.String())
}

func TestAccruedFee_RoundsUp(t *testing.T) {
	// 1 unidad, 1 bp, 1 segundo: 1*1*1e18/(10000*86400) no es exacto → sube.
	fee := AccruedFee(big.NewInt(1), 1, 1)
	exact := new(big.Int).Quo(CollateralPrecision, big.NewInt(BasisPoints*SecondsPerDay))
	assert.Equal(t, 1, fee.Cmp(exact), "la fee debe redondear hacia arriba")
}

func TestAccruedFee_ZeroInputs(t *testing.T) {
	assert.Zero(t, AccruedFee(nil, 10, 100).Sign())
	assert.Zero(t, AccruedFee(big.NewInt(0), 10, 100).Sign())
	assert.Zero(t, AccruedFee(big.NewInt(1000), 0, 100).Sign())
	assert.Zero(t, AccruedFee(big.NewInt(1000), 10, 0).Sign())
	assert.Zero(t, AccruedFee(big.NewInt(1000), 10, -5).Sign())
}

func TestAccruedFeeFromRateSeconds_MatchesSingleSegment(t *testing.T) {
	borrowed := big.NewInt(500_000)
	rateSeconds := new(big.Int).Mul(big.NewInt(10), big.NewInt(3600))
	assert.Equal(t,
		AccruedFee(borrowed, 10, 3600).String(),
		AccruedFeeFromRateSeconds(borrowed, rateSeconds).String(),
	)
}

func TestAccruedFeeFromRateSeconds_TwoSegments(t *testing.T) {
	// Una hora a 10 bp más una hora a 20 bp equivale al acumulador integrado.
	borrowed := big.NewInt(1_000_000)
	acc := new(big.Int).Add(
		new(big.Int).Mul(big.NewInt(10), big.NewInt(3600)),
		new(big.Int).Mul(big.NewInt(20), big.NewInt(3600)),
	)
	split := new(big.Int).Add(
		AccruedFee(borrowed, 10, 3600),
		AccruedFee(borrowed, 20, 3600),
	)
	// El integrado redondea una vez; la suma por tramos, dos. Diferencia ≤ 1.
	diff := new(big.Int).Sub(split, AccruedFeeFromRateSeconds(borrowed, acc))
	assert.LessOrEqual(t, diff.CmpAbs(big.NewInt(1)), 0)
}

// --- AccruedCollateral ---

func TestAccruedCollateral_GoesNegative(t *testing.T) {
	collateral := AccruedFee(big.NewInt(1000), 10, SecondsPerDay) // 1 día justo
	balance := AccruedCollateral(collateral, big.NewInt(1000), 10, 2*SecondsPerDay)
	assert.Equal(t, -1, balance.Sign(), "tras dos días el balance de un día de colateral es negativo")
}

// --- EstimatedLifetimeSeconds ---

func TestEstimatedLifetimeSeconds_OneDayCollateral(t *testing.T) {
	borrowed := big.NewInt(123_456)
	collateral := DailyCollateral(borrowed, 10)
	life := EstimatedLifetimeSeconds(collateral, borrowed, 10)
	assert.Equal(t, int64(SecondsPerDay), life)
}

func TestEstimatedLifetimeSeconds_HalvesAfterHalfDay(t *testing.T) {
	borrowed := big.NewInt(1_000_000)
	collateral := DailyCollateral(borrowed, 10)
	remaining := AccruedCollateral(collateral, borrowed, 10, SecondsPerDay/2)
	life := EstimatedLifetimeSeconds(remaining, borrowed, 10)
	assert.Equal(t, int64(SecondsPerDay/2), life)
}

func TestEstimatedLifetimeSeconds_NonPositiveBalance(t *testing.T) {
	assert.Zero(t, EstimatedLifetimeSeconds(big.NewInt(0), big.NewInt(1000), 10))
	assert.Zero(t, EstimatedLifetimeSeconds(big.NewInt(-5), big.NewInt(1000), 10))
	assert.Zero(t, EstimatedLifetimeSeconds(nil, big.NewInt(1000), 10))
}

// --- SplitFees ---

func TestSplitFees_Conservation(t *testing.T) {
	for _, total := range []int64{1, 7, 9_999, 10_001, 123_456_789} {
		lender, platform := SplitFees(big.NewInt(total), 2000)
		sum := new(big.Int).Add(lender, platform)
		require.Equal(t, big.NewInt(total).String(), sum.String(), "total=%d", total)
	}
}

func TestSplitFees_PlatformRoundsDown(t *testing.T) {
	// 9 * 2000 / 10000 = 1.8 → plataforma 1, lender 8.
	lender, platform := SplitFees(big.NewInt(9), 2000)
	assert.Equal(t, "1", platform.String())
	assert.Equal(t, "8", lender.String())
}

func TestSplitFees_ZeroTotal(t *testing.T) {
	lender, platform := SplitFees(big.NewInt(0), 2000)
	assert.Zero(t, lender.Sign())
	assert.Zero(t, platform.Sign())
}

// --- FeeByBPRoundUp ---

func TestFeeByBPRoundUp_Exact(t *testing.T) {
	assert.Equal(t, "15", FeeByBPRoundUp(big.NewInt(1000), 150).String())
}

func TestFeeByBPRoundUp_RoundsUp(t *testing.T) {
	// 999 * 10 / 10000 = 0.999 → 1.
	assert.Equal(t, "1", FeeByBPRoundUp(big.NewInt(999), 10).String())
}

// --- Normalize / Denormalize ---

func TestNormalizeDenormalize_RoundTrip(t *testing.T) {
	v := big.NewInt(123_456)
	assert.Equal(t, v.String(), Denormalize(Normalize(v)).String())
}

func TestDenormalizeRoundUp_PartialUnit(t *testing.T) {
	almost := new(big.Int).Sub(CollateralPrecision, big.NewInt(1))
	assert.Zero(t, Denormalize(almost).Sign())
	assert.Equal(t, "1", DenormalizeRoundUp(almost).String())
}
