package storage

// sqlite.go — persistencia de runs de simulación.
//
// Estrategia:
//   - `runs`: UNA fila por run (UPSERT): el runner la reescribe al terminar
//     con los contadores finales.
//   - `operations`: log append-only, una fila por operación del escenario.
//   - `snapshots`: la foto del ledger tras cada operación, serializada a JSON.
//     Es material de replay/debug, no de consulta caliente: no se indexa por
//     contenido.
//   - Prune automático al arrancar: runs (y sus hijos) de más de 30 días.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/levsim/internal/domain"
	"github.com/alejandrodnm/levsim/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    scenario    TEXT     NOT NULL,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME,
    operations  INTEGER  NOT NULL DEFAULT 0,
    failed      INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS operations (
    run_id    TEXT    NOT NULL,
    seq       INTEGER NOT NULL,
    kind      TEXT    NOT NULL,
    sim_time  INTEGER NOT NULL,
    detail    TEXT,
    err       TEXT,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS snapshots (
    run_id   TEXT    NOT NULL,
    seq      INTEGER NOT NULL,
    sim_time INTEGER NOT NULL,
    state    TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_ops_run      ON operations(run_id, seq);
`

const retentionRuns = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada, aplica el
// schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun registra o actualiza el resumen del run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run ports.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, started_at, finished_at, operations, failed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			operations  = excluded.operations,
			failed      = excluded.failed`,
		run.ID, run.Scenario, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Operations, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: %w", err)
	}
	return nil
}

// SaveOperation añade una operación al log del run.
func (s *SQLiteStorage) SaveOperation(ctx context.Context, op ports.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO operations (run_id, seq, kind, sim_time, detail, err)
		VALUES (?, ?, ?, ?, ?, ?)`,
		op.RunID, op.Seq, op.Kind, op.Timestamp, op.Detail, op.Err,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOperation: %w", err)
	}
	return nil
}

// SaveSnapshot persiste la foto del ledger tras la operación seq del run.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, runID string, seq int, snap domain.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := json.Marshal(snapshotDoc(snap))
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (run_id, seq, sim_time, state)
		VALUES (?, ?, ?, ?)`,
		runID, seq, snap.Timestamp, string(state),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: %w", err)
	}
	return nil
}

// GetRuns devuelve los runs del rango [from, to], más recientes primero.
func (s *SQLiteStorage) GetRuns(ctx context.Context, from, to time.Time) ([]ports.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// finished_at se selecciona como columna desnuda (no COALESCE): las
	// expresiones pierden el decltype DATETIME y el driver devolvería un
	// string. El fallback a started_at se aplica en Go.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, started_at, finished_at, operations, failed
		FROM runs
		WHERE started_at >= ? AND started_at <= ?
		ORDER BY started_at DESC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: %w", err)
	}
	defer rows.Close()

	var out []ports.RunRecord
	for rows.Next() {
		var r ports.RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Scenario, &r.StartedAt, &finished, &r.Operations, &r.Failed); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		} else {
			r.FinishedAt = r.StartedAt
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.GetRuns: %w", err)
	}
	return out, nil
}

// Close cierra la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld borra runs antiguos y sus operaciones/snapshots huérfanos.
// Best-effort: un fallo aquí no impide arrancar.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM operations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM snapshots  WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}
