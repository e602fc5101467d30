// Package optimizer turns normalized lending rates into ranked spread
// opportunities, a leveraged looping strategy and its action plan.
package optimizer

import (
	"fmt"
	"math"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Default strategy parameters.
const (
	DefaultLTV            = 0.9
	DefaultStopCondition  = 0.8
	DefaultInitialCapital = 100.0
	DefaultRebalanceHours = 1.0
	DefaultGasCostPerTx   = 0.05
)

// Params controls market selection and strategy sizing.
type Params struct {
	// Chains and Assets are allow-lists. Empty means all.
	Chains []domain.Chain
	Assets []string

	// SameProtocol restricts opportunities to pairs on one protocol.
	SameProtocol bool

	// MinSpread is the minimum supply-minus-borrow spread, in percent.
	MinSpread float64

	LTV           float64
	StopCondition float64

	InitialCapital float64
	RebalanceHours float64
	GasCostPerTx   float64
}

// DefaultParams returns the baseline strategy parameters.
func DefaultParams() Params {
	return Params{
		LTV:            DefaultLTV,
		StopCondition:  DefaultStopCondition,
		InitialCapital: DefaultInitialCapital,
		RebalanceHours: DefaultRebalanceHours,
		GasCostPerTx:   DefaultGasCostPerTx,
	}
}

// Validate reports the first out-of-range parameter. NaN and infinite
// values are always out of range.
func (p Params) Validate() error {
	if !(p.LTV > 0 && p.LTV < 1) {
		return fmt.Errorf("%w: ltv must be in (0,1), got %v", domain.ErrInvalidStrategy, p.LTV)
	}
	if !(p.StopCondition > 0 && p.StopCondition < 1) {
		return fmt.Errorf("%w: stop condition must be in (0,1), got %v", domain.ErrInvalidStrategy, p.StopCondition)
	}
	if !(p.InitialCapital > 0 && finite(p.InitialCapital)) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrInvalidStrategy, p.InitialCapital)
	}
	if !(p.RebalanceHours > 0 && finite(p.RebalanceHours)) {
		return fmt.Errorf("%w: rebalance hours must be positive, got %v", domain.ErrInvalidStrategy, p.RebalanceHours)
	}
	if !(p.MinSpread >= 0 && finite(p.MinSpread)) {
		return fmt.Errorf("%w: min spread must not be negative, got %v", domain.ErrInvalidStrategy, p.MinSpread)
	}
	if !(p.GasCostPerTx >= 0 && finite(p.GasCostPerTx)) {
		return fmt.Errorf("%w: gas cost per tx must not be negative, got %v", domain.ErrInvalidStrategy, p.GasCostPerTx)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
