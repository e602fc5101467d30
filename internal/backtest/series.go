// Package backtest provides historical analytics over lending rate series:
// per-market statistics, chain spreads and a replay of the looping
// strategy with compounding.
package backtest

import (
	"sort"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Metric names a rate column. The names follow DeFiLlama's fields.
type Metric string

const (
	MetricSupply Metric = "apyBase"
	MetricBorrow Metric = "apyBaseBorrow"
)

// Pair holds one market's rates at a timestamp. Nil means missing.
type Pair struct {
	Supply *float64 `json:"supply,omitempty"`
	Borrow *float64 `json:"borrow,omitempty"`
}

func (p Pair) get(m Metric) *float64 {
	if m == MetricBorrow {
		return p.Borrow
	}
	return p.Supply
}

// Point is one timestamp across all markets.
type Point struct {
	Time   time.Time       `json:"time"`
	Values map[string]Pair `json:"values"`
}

// Series is a time-ordered, outer-joined set of market rates.
// The zero value is an empty series.
type Series struct {
	points []Point
}

// Float returns a pointer to v, for building Pairs.
func Float(v float64) *float64 { return &v }

// Add records a market's rates at t. Non-nil fields overwrite earlier values
// for the same market and timestamp.
func (s *Series) Add(t time.Time, key string, p Pair) {
	t = t.UTC()
	i := sort.Search(len(s.points), func(i int) bool { return !s.points[i].Time.Before(t) })
	if i == len(s.points) || !s.points[i].Time.Equal(t) {
		s.points = append(s.points, Point{})
		copy(s.points[i+1:], s.points[i:])
		s.points[i] = Point{Time: t, Values: make(map[string]Pair)}
	}

	cur := s.points[i].Values[key]
	if p.Supply != nil {
		cur.Supply = p.Supply
	}
	if p.Borrow != nil {
		cur.Borrow = p.Borrow
	}
	s.points[i].Values[key] = cur
}

// Len returns the number of timestamps.
func (s *Series) Len() int { return len(s.points) }

// Points returns the timestamps in order. The slice must not be modified.
func (s *Series) Points() []Point { return s.points }

// Merge returns the outer join of s and other.
func (s *Series) Merge(other *Series) *Series {
	out := &Series{}
	for _, src := range []*Series{s, other} {
		if src == nil {
			continue
		}
		for _, p := range src.points {
			for k, v := range p.Values {
				out.Add(p.Time, k, v)
			}
		}
	}
	return out
}

// Filter keeps only markets on chain. An empty chain keeps everything.
// Timestamps left without values are dropped.
func (s *Series) Filter(chain domain.Chain) *Series {
	if chain == "" {
		return s.Merge(nil)
	}
	out := &Series{}
	for _, p := range s.points {
		for k, v := range p.Values {
			if _, c, _, err := domain.ParseMarketKey(k); err == nil && c == chain {
				out.Add(p.Time, k, v)
			}
		}
	}
	return out
}

// Columns returns the sorted market keys present in the series.
func (s *Series) Columns() []string {
	seen := make(map[string]struct{})
	for _, p := range s.points {
		for k := range p.Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Values returns the non-missing values of one column, oldest first.
func (s *Series) Values(key string, m Metric) []float64 {
	var out []float64
	for _, p := range s.points {
		if v := p.Values[key].get(m); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// extremes returns the highest supply and lowest borrow quoted at p.
func (p Point) extremes() (maxSupply, minBorrow float64, ok bool) {
	var haveSupply, haveBorrow bool
	for _, v := range p.Values {
		if v.Supply != nil && (!haveSupply || *v.Supply > maxSupply) {
			maxSupply, haveSupply = *v.Supply, true
		}
		if v.Borrow != nil && (!haveBorrow || *v.Borrow < minBorrow) {
			minBorrow, haveBorrow = *v.Borrow, true
		}
	}
	return maxSupply, minBorrow, haveSupply && haveBorrow
}
