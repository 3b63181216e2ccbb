package out

import (
	"context"
	"time"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// HistoryStore is the durable append-only log of deployment events.
// It is an observability aid: callers treat failures as non-fatal.
type HistoryStore interface {
	Append(ctx context.Context, rec domain.HistoryRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
	MarkStopped(ctx context.Context, appName string, stoppedAt time.Time) error
	Close() error
}
