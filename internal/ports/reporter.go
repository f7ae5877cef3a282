package ports

import (
	"context"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// Reporter presenta el estado del ledger al usuario (consola, etc.).
type Reporter interface {
	Report(ctx context.Context, snap domain.LedgerSnapshot) error
}
