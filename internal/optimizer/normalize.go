package optimizer

import (
	"slices"
	"sort"
	"strings"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Normalize drops invalid observations, upper-cases asset symbols, keeps the
// newest observation per market key and sorts the result by key.
func Normalize(rates []domain.Rate) []domain.Rate {
	latest := make(map[string]domain.Rate, len(rates))
	for _, r := range rates {
		if !r.Valid() {
			continue
		}
		r.Market.Asset = strings.ToUpper(r.Market.Asset)
		if prev, ok := latest[r.Market.Key]; ok && !r.ObservedAt.After(prev.ObservedAt) {
			continue
		}
		latest[r.Market.Key] = r
	}

	out := make([]domain.Rate, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market.Key < out[j].Market.Key })
	return out
}

// Filter keeps rates on allowed chains and assets. Empty allow-lists
// allow everything.
func Filter(rates []domain.Rate, p Params) []domain.Rate {
	out := make([]domain.Rate, 0, len(rates))
	for _, r := range rates {
		if len(p.Chains) > 0 && !slices.Contains(p.Chains, r.Market.Chain) {
			continue
		}
		if len(p.Assets) > 0 && !slices.ContainsFunc(p.Assets, func(a string) bool {
			return strings.EqualFold(a, r.Market.Asset)
		}) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RankSupply returns rates ordered by supply APY, highest first.
func RankSupply(rates []domain.Rate) []domain.Rate {
	out := slices.Clone(rates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SupplyAPY != out[j].SupplyAPY {
			return out[i].SupplyAPY > out[j].SupplyAPY
		}
		return out[i].Market.Key < out[j].Market.Key
	})
	return out
}

// RankBorrow returns rates that quote a borrow rate, cheapest first.
func RankBorrow(rates []domain.Rate) []domain.Rate {
	out := make([]domain.Rate, 0, len(rates))
	for _, r := range rates {
		if r.HasBorrow() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BorrowAPY != out[j].BorrowAPY {
			return out[i].BorrowAPY < out[j].BorrowAPY
		}
		return out[i].Market.Key < out[j].Market.Key
	})
	return out
}
