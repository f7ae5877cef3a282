package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// RunRecord resume una ejecución de escenario persistida.
type RunRecord struct {
	ID         string
	Scenario   string
	StartedAt  time.Time
	FinishedAt time.Time
	Operations int
	Failed     int
}

// OperationRecord es una operación individual dentro de un run.
type OperationRecord struct {
	RunID     string
	Seq       int
	Kind      string
	Timestamp int64 // reloj lógico de la simulación
	Detail    string
	Err       string
}

// Storage persiste runs, operaciones y snapshots del ledger.
type Storage interface {
	// SaveRun registra (o actualiza) el resumen de un run.
	SaveRun(ctx context.Context, run RunRecord) error

	// SaveOperation añade una operación al log del run.
	SaveOperation(ctx context.Context, op OperationRecord) error

	// SaveSnapshot persiste la foto del ledger tras una operación.
	SaveSnapshot(ctx context.Context, runID string, seq int, snap domain.LedgerSnapshot) error

	// GetRuns devuelve los runs registrados en el rango de tiempo dado.
	GetRuns(ctx context.Context, from, to time.Time) ([]RunRecord, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
