package backtest

import (
	"math"
	"slices"
	"sort"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Stat summarizes one metric of one market.
type Stat struct {
	Pool   string       `json:"pool"`
	Metric Metric       `json:"metric"`
	Chain  domain.Chain `json:"chain"`
	Count  int          `json:"count"`

	Last       float64 `json:"last"`
	Average    float64 `json:"average"`
	Median     float64 `json:"median"`
	Volatility float64 `json:"volatility"`
	Max        float64 `json:"max"`
	Min        float64 `json:"min"`
	P10        float64 `json:"p10"`
	P90        float64 `json:"p90"`
}

// Stats computes both metrics of market key. Metrics without any value are
// omitted.
func Stats(s *Series, key string) []Stat {
	var chain domain.Chain
	if _, c, _, err := domain.ParseMarketKey(key); err == nil {
		chain = c
	}

	var out []Stat
	for _, m := range []Metric{MetricSupply, MetricBorrow} {
		values := s.Values(key, m)
		if len(values) == 0 {
			continue
		}
		sorted := slices.Clone(values)
		sort.Float64s(sorted)

		out = append(out, Stat{
			Pool:       key,
			Metric:     m,
			Chain:      chain,
			Count:      len(values),
			Last:       values[len(values)-1],
			Average:    mean(values),
			Median:     quantile(sorted, 0.5),
			Volatility: stddev(values),
			Max:        sorted[len(sorted)-1],
			Min:        sorted[0],
			P10:        quantile(sorted, 0.1),
			P90:        quantile(sorted, 0.9),
		})
	}
	return out
}

// AllStats computes Stats for every column.
func AllStats(s *Series) []Stat {
	var out []Stat
	for _, key := range s.Columns() {
		out = append(out, Stats(s, key)...)
	}
	return out
}

// CategoryRow aggregates stats over a chain or a metric.
type CategoryRow struct {
	Category   string  `json:"category"`
	Average    float64 `json:"average"`
	Median     float64 `json:"median"`
	Volatility float64 `json:"volatility"`
	Max        float64 `json:"max"`
	Min        float64 `json:"min"`
	P10        float64 `json:"p10"`
	P90        float64 `json:"p90"`
}

// CategoryAverages returns one row per chain with every column averaged,
// then one row per metric. Metric rows average the averages and
// volatilities, take the median of medians, the extreme max/min and the
// 10th/90th percentile of the P10/P90 columns.
func CategoryAverages(stats []Stat) []CategoryRow {
	byChain := make(map[domain.Chain][]Stat)
	for _, st := range stats {
		byChain[st.Chain] = append(byChain[st.Chain], st)
	}
	chains := make([]domain.Chain, 0, len(byChain))
	for c := range byChain {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	var out []CategoryRow
	for _, c := range chains {
		rows := byChain[c]
		out = append(out, CategoryRow{
			Category:   string(c),
			Average:    mean(column(rows, func(s Stat) float64 { return s.Average })),
			Median:     mean(column(rows, func(s Stat) float64 { return s.Median })),
			Volatility: mean(column(rows, func(s Stat) float64 { return s.Volatility })),
			Max:        mean(column(rows, func(s Stat) float64 { return s.Max })),
			Min:        mean(column(rows, func(s Stat) float64 { return s.Min })),
			P10:        mean(column(rows, func(s Stat) float64 { return s.P10 })),
			P90:        mean(column(rows, func(s Stat) float64 { return s.P90 })),
		})
	}

	for _, m := range []Metric{MetricSupply, MetricBorrow} {
		var rows []Stat
		for _, st := range stats {
			if st.Metric == m {
				rows = append(rows, st)
			}
		}
		if len(rows) == 0 {
			continue
		}
		out = append(out, CategoryRow{
			Category:   string(m),
			Average:    mean(column(rows, func(s Stat) float64 { return s.Average })),
			Median:     quantileOf(column(rows, func(s Stat) float64 { return s.Median }), 0.5),
			Volatility: mean(column(rows, func(s Stat) float64 { return s.Volatility })),
			Max:        slices.Max(column(rows, func(s Stat) float64 { return s.Max })),
			Min:        slices.Min(column(rows, func(s Stat) float64 { return s.Min })),
			P10:        quantileOf(column(rows, func(s Stat) float64 { return s.P10 }), 0.1),
			P90:        quantileOf(column(rows, func(s Stat) float64 { return s.P90 }), 0.9),
		})
	}
	return out
}

func column(stats []Stat, f func(Stat) float64) []float64 {
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = f(s)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation. Fewer than two values yield 0.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// quantile interpolates linearly between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func quantileOf(values []float64, q float64) float64 {
	sorted := slices.Clone(values)
	sort.Float64s(sorted)
	return quantile(sorted, q)
}
