package optimizer

import (
	"math"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Loops returns how many borrow-then-resupply iterations it takes for the
// marginal borrow (ltv^n) to fall to stop.
func Loops(ltv, stop float64) int {
	return int(math.Ceil(math.Log(stop) / math.Log(ltv)))
}

// LoopStrategy sizes a recursive position on p.InitialCapital. Every unit
// of collateral earns maxSupply and every borrowed unit adds spread, both
// in percent.
func LoopStrategy(maxSupply, spread float64, p Params) (domain.LoopStrategy, error) {
	if err := p.Validate(); err != nil {
		return domain.LoopStrategy{}, err
	}

	c := p.InitialCapital
	loops := Loops(p.LTV, p.StopCondition)
	total := c * (1 - math.Pow(p.LTV, float64(loops+1))) / (1 - p.LTV)

	return domain.LoopStrategy{
		LTV:               p.LTV,
		StopCondition:     p.StopCondition,
		Loops:             loops,
		InitialCollateral: c,
		TotalCollateral:   total,
		Leverage:          total / c,
		NetAPY:            (maxSupply*c + (total-c)*spread) / c,
	}, nil
}
