package optimizer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Evaluate normalizes and filters rates and returns a snapshot with the
// ranked opportunities. Best is the opportunity whose loop strategy yields
// the highest net APY.
func Evaluate(rates []domain.Rate, p Params, now time.Time) (domain.Snapshot, error) {
	if err := p.Validate(); err != nil {
		return domain.Snapshot{}, err
	}

	normalized := Filter(Normalize(rates), p)
	if len(normalized) == 0 {
		return domain.Snapshot{}, domain.ErrNoRates
	}

	snap := domain.Snapshot{
		ID:            uuid.NewString(),
		TakenAt:       now.UTC(),
		Rates:         normalized,
		Opportunities: Opportunities(normalized, p),
		ChainSpreads:  ChainSpread(normalized),
	}

	for i := range snap.Opportunities {
		opp := snap.Opportunities[i]
		strat, err := LoopStrategy(opp.Supply.SupplyAPY, opp.Spread, p)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("size %s/%s: %w", opp.Supply.Market.Key, opp.Borrow.Market.Key, err)
		}
		if snap.Strategy == nil || strat.NetAPY > snap.Strategy.NetAPY {
			snap.Best = &opp
			snap.Strategy = &strat
		}
	}
	return snap, nil
}
