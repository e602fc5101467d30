package stableopt

import (
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

// Re-exported types so library users never import internal packages.
type (
	// Params controls market selection and strategy sizing.
	Params = optimizer.Params

	// Snapshot is the output of one optimization cycle.
	Snapshot = domain.Snapshot

	// Rate is a normalized observation of one market.
	Rate = domain.Rate

	// Market identifies one lending market.
	Market = domain.Market

	// Opportunity pairs a supply market with a borrow market.
	Opportunity = domain.Opportunity

	// RateSource fetches current rates from one provider.
	RateSource = ports.RateSource

	// Cache stores the serialized latest snapshot.
	Cache = ports.Cache

	// HistoryStore records every rate observation.
	HistoryStore = ports.HistoryStore

	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient

	// Logger is the structured logging interface from pkg/log.
	Logger = log.Logger

	// LogField is a structured log field.
	LogField = log.Field
)

// Errors returned by the agent. Check with errors.Is.
var (
	ErrAlreadyRunning     = domain.ErrAlreadyRunning
	ErrNotRunning         = domain.ErrNotRunning
	ErrShutdownTimeout    = domain.ErrShutdownTimeout
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrInvalidStrategy    = domain.ErrInvalidStrategy
	ErrSourcesUnavailable = domain.ErrSourcesUnavailable
)

// DefaultParams returns the baseline strategy parameters.
func DefaultParams() Params {
	return optimizer.DefaultParams()
}
