package domain

import "errors"

// Domain errors represent error conditions in the stableopt domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("stableopt: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("stableopt: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("stableopt: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("stableopt: invalid configuration")

	// ErrNoRates is returned when an optimization cycle has nothing to rank.
	ErrNoRates = errors.New("stableopt: no rates available")

	// ErrSourcesUnavailable is returned when every rate source failed in a cycle.
	ErrSourcesUnavailable = errors.New("stableopt: all rate sources failed")

	// ErrUnknownMarket is returned for market keys that cannot be resolved.
	ErrUnknownMarket = errors.New("stableopt: unknown market")

	// ErrInvalidStrategy is returned for loop parameters outside (0, 1).
	ErrInvalidStrategy = errors.New("stableopt: invalid strategy parameters")

	// ErrDivisionByZero is returned by fixed-point helpers on a zero divisor.
	ErrDivisionByZero = errors.New("stableopt: division by zero")
)
