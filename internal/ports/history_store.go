package ports

import (
	"context"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
)

// HistoryStore records every rate observation for analytics and backtests.
type HistoryStore interface {
	// Append stores the observations. Re-appending the same market and
	// timestamp overwrites the earlier row.
	Append(ctx context.Context, rates []domain.Rate) error

	// Range returns observations of one market in [from, to], oldest first.
	// A zero from or to leaves that side open.
	Range(ctx context.Context, marketKey string, from, to time.Time) ([]domain.Rate, error)

	// Markets lists the distinct market keys with at least one observation.
	Markets(ctx context.Context) ([]string, error)

	// Prune deletes observations older than before and reports how many
	// rows were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
