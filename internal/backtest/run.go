package backtest

import (
	"math"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
)

// Difference is the best available spread at one timestamp.
type Difference struct {
	Time      time.Time `json:"time"`
	Spread    float64   `json:"spread"`
	MaxSupply float64   `json:"max_supply"`
}

// OverallDifferences returns, for every timestamp quoting both a supply and
// a borrow rate, the highest supply minus the lowest borrow.
func OverallDifferences(s *Series) []Difference {
	var out []Difference
	for _, p := range s.Points() {
		maxSupply, minBorrow, ok := p.extremes()
		if !ok {
			continue
		}
		out = append(out, Difference{Time: p.Time, Spread: maxSupply - minBorrow, MaxSupply: maxSupply})
	}
	return out
}

// Config parameterizes a backtest run.
type Config struct {
	LTV               float64
	InitialCollateral float64
	StopCondition     float64
	// Chain restricts the markets considered. Empty means all chains.
	Chain domain.Chain
}

// DefaultConfig mirrors the optimizer defaults on Arbitrum.
func DefaultConfig() Config {
	return Config{
		LTV:               optimizer.DefaultLTV,
		InitialCollateral: optimizer.DefaultInitialCapital,
		StopCondition:     optimizer.DefaultStopCondition,
		Chain:             domain.ChainArbitrum,
	}
}

func (c Config) params() optimizer.Params {
	p := optimizer.DefaultParams()
	p.LTV = c.LTV
	p.StopCondition = c.StopCondition
	p.InitialCapital = c.InitialCollateral
	return p
}

// Row is the strategy outcome at one timestamp.
type Row struct {
	Time      time.Time `json:"time"`
	Spread    float64   `json:"spread"`
	MaxSupply float64   `json:"max_supply"`
	FinalAPY  float64   `json:"final_apy"`
}

// Result is the outcome of Run.
type Result struct {
	Rows     []Row   `json:"rows"`
	Loops    int     `json:"loops"`
	Leverage float64 `json:"leverage"`
}

// Run replays the looping strategy over the series: at each timestamp the
// best supply rate is levered by the best spread on the configured chain.
func Run(s *Series, cfg Config) (Result, error) {
	p := cfg.params()
	base, err := optimizer.LoopStrategy(0, 0, p)
	if err != nil {
		return Result{}, err
	}

	res := Result{Loops: base.Loops, Leverage: base.Leverage}
	for _, d := range OverallDifferences(s.Filter(cfg.Chain)) {
		strat, err := optimizer.LoopStrategy(d.MaxSupply, d.Spread, p)
		if err != nil {
			return Result{}, err
		}
		res.Rows = append(res.Rows, Row{
			Time:      d.Time,
			Spread:    d.Spread,
			MaxSupply: d.MaxSupply,
			FinalAPY:  strat.NetAPY,
		})
	}
	return res, nil
}

// Balance is the compounded position value after one period.
type Balance struct {
	Time      time.Time `json:"time"`
	DailyRate float64   `json:"daily_rate"`
	Balance   float64   `json:"balance"`
}

// Compound grows initial by each row's APY converted to a daily rate.
// Rows with a non-finite APY are skipped.
func Compound(rows []Row, initial float64) []Balance {
	out := make([]Balance, 0, len(rows))
	balance := initial
	for _, r := range rows {
		if math.IsNaN(r.FinalAPY) || math.IsInf(r.FinalAPY, 0) {
			continue
		}
		daily := math.Pow(1+r.FinalAPY/100, 1.0/365) - 1
		balance *= 1 + daily
		out = append(out, Balance{Time: r.Time, DailyRate: daily, Balance: balance})
	}
	return out
}

// Summary is the headline of a backtest.
type Summary struct {
	MeanAPY float64       `json:"mean_apy"`
	Loops   int           `json:"loops"`
	Gas     optimizer.Gas `json:"gas"`
}

// Summarize averages the final APY of rows and prices the rebalancing gas
// for loops using p's capital, rebalance frequency and cost per tx.
func Summarize(rows []Row, loops int, p optimizer.Params) (Summary, error) {
	gas, err := optimizer.GasCost(loops, p)
	if err != nil {
		return Summary{}, err
	}
	apys := make([]float64, len(rows))
	for i, r := range rows {
		apys[i] = r.FinalAPY
	}
	return Summary{MeanAPY: mean(apys), Loops: loops, Gas: gas}, nil
}
