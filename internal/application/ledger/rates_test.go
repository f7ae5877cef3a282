package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
)

func testPair() domain.PairKey {
	return domain.PairKey{SaleToken: testSale, HoldToken: testHold}
}

// --- updateDailyRate ---

func TestRateRegistry_UpdateDailyRateBounds(t *testing.T) {
	r := newRateRegistry()
	pair := testPair()

	assert.ErrorIs(t, r.updateDailyRate(pair, 0, 100), ErrInvalidDailyRate)
	assert.ErrorIs(t, r.updateDailyRate(pair, 1, 100), ErrInvalidDailyRate)
	assert.ErrorIs(t, r.updateDailyRate(pair, domain.MaxDailyRateBP+1, 100), ErrInvalidDailyRate)

	assert.NoError(t, r.updateDailyRate(pair, domain.MinDailyRateBP, 100))
	assert.NoError(t, r.updateDailyRate(pair, domain.MaxDailyRateBP, 100))
}

func TestRateRegistry_UpdateDailyRateRejectsNoop(t *testing.T) {
	r := newRateRegistry()
	pair := testPair()

	require.NoError(t, r.updateDailyRate(pair, 20, 100))
	assert.ErrorIs(t, r.updateDailyRate(pair, 20, 200), ErrInvalidDailyRate)
}

func TestRateRegistry_DefaultRateOnFirstTouch(t *testing.T) {
	r := newRateRegistry()
	p := r.ensure(testPair(), 100)
	assert.Equal(t, uint64(domain.DefaultDailyRateBP), p.dailyRateBP)
}

// --- accumulator ---

func TestPairRate_AccAtDoesNotMutate(t *testing.T) {
	r := newRateRegistry()
	p := r.ensure(testPair(), 100)

	first := p.accAt(100 + 3600)
	second := p.accAt(100 + 3600)
	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, int64(100), p.latestUpAt)
}

func TestPairRate_TwoSegmentAccrual(t *testing.T) {
	r := newRateRegistry()
	pair := testPair()
	p := r.ensure(pair, 0)

	// Una hora al default (10 bp), luego cambio a 20 bp y otra hora.
	require.NoError(t, r.updateDailyRate(pair, 20, 3600))
	acc := p.accAt(7200)

	want := new(big.Int).Add(
		new(big.Int).Mul(big.NewInt(10), big.NewInt(3600)),
		new(big.Int).Mul(big.NewInt(20), big.NewInt(3600)),
	)
	assert.Equal(t, want.String(), acc.String(), "el cambio de rate no se reaplica hacia atrás")
}

func TestPairRate_CheckpointConsolidates(t *testing.T) {
	r := newRateRegistry()
	p := r.ensure(testPair(), 0)

	p.checkpoint(1800)
	assert.Equal(t, "18000", p.accRateSeconds.String()) // 10 bp * 1800 s
	assert.Equal(t, int64(1800), p.latestUpAt)

	// Checkpoint en el mismo instante es un no-op.
	p.checkpoint(1800)
	assert.Equal(t, "18000", p.accRateSeconds.String())
}

// --- entranceFee ---

func TestPairRate_EntranceFeeSentinels(t *testing.T) {
	r := newRateRegistry()
	pair := testPair()
	p := r.ensure(pair, 0)

	assert.Equal(t, uint64(domain.DefaultEntranceFeeBP), p.entranceFee())

	require.NoError(t, r.updateEntranceFee(pair, 25, 0))
	assert.Equal(t, uint64(25), p.entranceFee())

	require.NoError(t, r.updateEntranceFee(pair, domain.EntranceFeeDisabled, 0))
	assert.Zero(t, p.entranceFee())
}

func TestRateRegistry_UpdateEntranceFeeBounds(t *testing.T) {
	r := newRateRegistry()
	pair := testPair()

	assert.NoError(t, r.updateEntranceFee(pair, domain.MaxEntranceFeeBP, 0))
	assert.ErrorIs(t, r.updateEntranceFee(pair, domain.MaxEntranceFeeBP+2, 0), ErrInvalidEntranceFee)
}

// --- view ---

func TestRateRegistry_ViewUnknownPair(t *testing.T) {
	r := newRateRegistry()
	v := r.view(testPair(), 0)
	assert.Equal(t, uint64(domain.DefaultDailyRateBP), v.CurrentDailyRate)
	assert.Equal(t, uint64(domain.DefaultEntranceFeeBP), v.EntranceFeeBP)
	assert.Zero(t, v.TotalBorrowed.Sign())
}
