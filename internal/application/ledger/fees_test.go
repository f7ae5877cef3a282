package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// --- feeBank ---

func TestFeeBank_CreditAndDrain(t *testing.T) {
	f := newFeeBank()
	f.creditLender(testLender1, testHold, domain.Normalize(big.NewInt(100)))

	assert.Equal(t, e18(100), f.lenderBalance(testLender1, testHold).String())
	assert.Equal(t, "100", f.drainLender(testLender1, testHold).String())
	assert.Zero(t, f.lenderBalance(testLender1, testHold).Sign())
}

func TestFeeBank_DrainKeepsSubUnitResidue(t *testing.T) {
	f := newFeeBank()
	// 1.5 unidades: se pagan 1, queda 0.5 acumulado para la siguiente.
	amount := new(big.Int).Add(domain.CollateralPrecision, new(big.Int).Quo(domain.CollateralPrecision, big.NewInt(2)))
	f.creditLender(testLender1, testHold, amount)

	assert.Equal(t, "1", f.drainLender(testLender1, testHold).String())
	residue := f.lenderBalance(testLender1, testHold)
	assert.Equal(t, new(big.Int).Quo(domain.CollateralPrecision, big.NewInt(2)).String(), residue.String())

	// Otro medio completa la unidad.
	f.creditLender(testLender1, testHold, new(big.Int).Quo(domain.CollateralPrecision, big.NewInt(2)))
	assert.Equal(t, "1", f.drainLender(testLender1, testHold).String())
}

func TestFeeBank_IgnoresNonPositive(t *testing.T) {
	f := newFeeBank()
	f.creditLender(testLender1, testHold, nil)
	f.creditLender(testLender1, testHold, big.NewInt(-5))
	f.creditPlatform(testHold, big.NewInt(0))

	assert.Zero(t, f.lenderBalance(testLender1, testHold).Sign())
	assert.Zero(t, f.platformBalance(testHold).Sign())
	assert.Zero(t, f.drainPlatform(testHold).Sign())
}

func TestFeeBank_SnapshotsAreSorted(t *testing.T) {
	f := newFeeBank()
	f.creditLender(testLender2, testHold, domain.Normalize(big.NewInt(1)))
	f.creditLender(testLender1, testHold, domain.Normalize(big.NewInt(2)))
	f.creditLender(testLender1, testSale, domain.Normalize(big.NewInt(3)))
	f.creditPlatform(testHold, domain.Normalize(big.NewInt(4)))

	lenders := f.snapshotLenders()
	require.Len(t, lenders, 3)
	assert.Equal(t, testLender1, lenders[0].Holder)
	assert.Equal(t, testLender2, lenders[2].Holder)

	platform := f.snapshotPlatform()
	require.Len(t, platform, 1)
	assert.Equal(t, e18(4), platform[0].Amount.String())
}

// --- vault ---

func TestVault_DepositWithdraw(t *testing.T) {
	v := newVault()
	v.deposit(testHold, big.NewInt(1_000))

	require.NoError(t, v.withdraw(testHold, big.NewInt(400)))
	assert.Equal(t, "600", v.balance(testHold).String())

	assert.ErrorIs(t, v.withdraw(testHold, big.NewInt(601)), ErrVaultInsufficientFunds)
	assert.ErrorIs(t, v.withdraw(testSale, big.NewInt(1)), ErrVaultInsufficientFunds)
}

func TestVault_IgnoresNonPositiveAmounts(t *testing.T) {
	v := newVault()
	v.deposit(testHold, big.NewInt(-10))
	v.deposit(testHold, nil)
	assert.Zero(t, v.balance(testHold).Sign())

	// Retirar cero o negativo es un no-op, no un error.
	assert.NoError(t, v.withdraw(testHold, big.NewInt(0)))
	assert.NoError(t, v.withdraw(testHold, nil))
}

func TestVault_SnapshotSkipsEmpty(t *testing.T) {
	v := newVault()
	v.deposit(testHold, big.NewInt(5))
	v.deposit(testSale, big.NewInt(3))
	require.NoError(t, v.withdraw(testSale, big.NewInt(3)))

	snap := v.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, testHold, snap[0].Token)
	assert.Equal(t, "5", snap[0].Amount.String())
}
