package optimizer

import (
	"sort"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Opportunities pairs every supply market with every borrow market on the
// same chain and keeps pairs whose spread reaches p.MinSpread. Results are
// ordered by spread, then supply key, then borrow key.
func Opportunities(rates []domain.Rate, p Params) []domain.Opportunity {
	borrows := RankBorrow(rates)

	var out []domain.Opportunity
	for _, s := range RankSupply(rates) {
		for _, b := range borrows {
			if s.Market.Chain != b.Market.Chain {
				continue
			}
			if p.SameProtocol && s.Market.Protocol != b.Market.Protocol {
				continue
			}
			opp := domain.NewOpportunity(s, b)
			if opp.Spread < p.MinSpread {
				continue
			}
			out = append(out, opp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Spread != out[j].Spread {
			return out[i].Spread > out[j].Spread
		}
		if out[i].Supply.Market.Key != out[j].Supply.Market.Key {
			return out[i].Supply.Market.Key < out[j].Supply.Market.Key
		}
		return out[i].Borrow.Market.Key < out[j].Borrow.Market.Key
	})
	return out
}

// ChainSpread returns, per chain, the best supply APY minus the cheapest
// borrow APY. Chains without a borrow quote are omitted.
func ChainSpread(rates []domain.Rate) map[domain.Chain]float64 {
	maxSupply := make(map[domain.Chain]float64)
	minBorrow := make(map[domain.Chain]float64)
	for _, r := range rates {
		c := r.Market.Chain
		if v, ok := maxSupply[c]; !ok || r.SupplyAPY > v {
			maxSupply[c] = r.SupplyAPY
		}
		if !r.HasBorrow() {
			continue
		}
		if v, ok := minBorrow[c]; !ok || r.BorrowAPY < v {
			minBorrow[c] = r.BorrowAPY
		}
	}

	out := make(map[domain.Chain]float64, len(minBorrow))
	for c, b := range minBorrow {
		out[c] = maxSupply[c] - b
	}
	return out
}
