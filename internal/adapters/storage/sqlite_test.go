package storage

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
	"github.com/alejandrodnm/levsim/internal/ports"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, startedAt time.Time) ports.RunRecord {
	return ports.RunRecord{
		ID:        id,
		Scenario:  "basic-borrow",
		StartedAt: startedAt,
	}
}

// --- SaveRun / GetRuns ---

func TestSaveRun_UpsertUpdatesCounters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	run := sampleRun("run-1", started)
	require.NoError(t, s.SaveRun(ctx, run))

	run.FinishedAt = started.Add(5 * time.Second)
	run.Operations = 7
	run.Failed = 2
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRuns(ctx, started.Add(-time.Minute), started.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1, "el upsert no duplica la fila")
	assert.Equal(t, "run-1", got[0].ID)
	assert.Equal(t, "basic-borrow", got[0].Scenario)
	assert.Equal(t, 7, got[0].Operations)
	assert.Equal(t, 2, got[0].Failed)
}

func TestGetRuns_RangeAndOrder(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SaveRun(ctx, sampleRun("old", base.Add(-48*time.Hour))))
	require.NoError(t, s.SaveRun(ctx, sampleRun("mid", base.Add(-2*time.Hour))))
	require.NoError(t, s.SaveRun(ctx, sampleRun("new", base)))

	got, err := s.GetRuns(ctx, base.Add(-24*time.Hour), base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Más recientes primero.
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
}

func TestGetRuns_EmptyWindow(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.GetRuns(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- SaveOperation ---

func TestSaveOperation_ReplaceBySeq(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	op := ports.OperationRecord{RunID: "run-1", Seq: 0, Kind: "borrow", Timestamp: 1_000_000}
	require.NoError(t, s.SaveOperation(ctx, op))
	op.Err = "ledger: transaction too old"
	require.NoError(t, s.SaveOperation(ctx, op))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM operations WHERE run_id = 'run-1'`).Scan(&count))
	assert.Equal(t, 1, count)

	var errText string
	require.NoError(t, s.db.QueryRow(`SELECT err FROM operations WHERE run_id = 'run-1' AND seq = 0`).Scan(&errText))
	assert.Equal(t, "ledger: transaction too old", errText)
}

// --- SaveSnapshot ---

func TestSaveSnapshot_SerializesAmountsAsDecimalStrings(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	hold := common.HexToAddress("0x0000000000000000000000000000000000000001")
	snap := domain.LedgerSnapshot{
		Timestamp: 1_000_000,
		Vault:     []domain.VaultBalance{{Token: hold, Amount: big.NewInt(610_200)}},
		Platform:  []domain.FeeBalance{{Token: hold, Amount: new(big.Int).Mul(big.NewInt(120), domain.CollateralPrecision)}},
	}
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", 0, snap))

	var state string
	require.NoError(t, s.db.QueryRow(`SELECT state FROM snapshots WHERE run_id = 'run-1' AND seq = 0`).Scan(&state))
	require.True(t, json.Valid([]byte(state)))
	assert.Contains(t, state, `"610200"`)
	assert.Contains(t, state, `"120000000000000000000"`)
}
