package ports

import (
	"context"

	"github.com/bft-labs/stableopt/internal/domain"
)

// RateSource fetches the current rates of the markets it is configured for.
type RateSource interface {
	// Name identifies the source in logs, metrics and snapshot errors.
	Name() string

	// Fetch returns one observation per market. A partial result with a nil
	// error is allowed when individual markets are skipped.
	Fetch(ctx context.Context) ([]domain.Rate, error)
}
