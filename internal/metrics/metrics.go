// Package metrics exposes the agent's Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/stableopt/internal/domain"
)

var (
	supplyAPY = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stableopt_supply_apy_percent",
		Help: "Latest supply APY per market",
	}, []string{"market", "chain", "protocol"})

	borrowAPY = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stableopt_borrow_apy_percent",
		Help: "Latest borrow APY per market (absent when the market quotes none)",
	}, []string{"market", "chain", "protocol"})

	chainSpread = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stableopt_chain_spread_percent",
		Help: "Best supply minus cheapest borrow per chain",
	}, []string{"chain"})

	bestNetAPY = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stableopt_best_strategy_net_apy_percent",
		Help: "Net APY of the best looping strategy in the latest snapshot",
	})

	sourcePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stableopt_source_polls_total",
		Help: "Rate source polls by outcome",
	}, []string{"source", "outcome"}) // outcome=success|failure

	sourceRates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stableopt_source_rates",
		Help: "Number of rates returned by each source in the last cycle",
	}, []string{"source"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stableopt_cycle_duration_seconds",
		Help:    "Duration of a full poll cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stableopt_cycles_total",
		Help: "Poll cycles by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	snapshotsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stableopt_snapshots_published_total",
		Help: "Snapshot publish attempts by outcome",
	}, []string{"outcome"})

	historyPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stableopt_history_pruned_rows_total",
		Help: "Rows deleted by history retention",
	})
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordSourcePoll records one source poll and how many rates it returned.
func RecordSourcePoll(source string, rates int, err error) {
	sourcePolls.WithLabelValues(source, outcome(err == nil)).Inc()
	if err == nil {
		sourceRates.WithLabelValues(source).Set(float64(rates))
	}
}

// RecordCycle records the outcome and duration of a poll cycle.
func RecordCycle(d time.Duration, err error) {
	cycleDuration.Observe(d.Seconds())
	cyclesTotal.WithLabelValues(outcome(err == nil)).Inc()
}

// RecordSnapshot publishes a snapshot's rates and spreads as gauges.
func RecordSnapshot(snap domain.Snapshot) {
	for _, r := range snap.Rates {
		labels := []string{r.Market.Key, string(r.Market.Chain), string(r.Market.Protocol)}
		supplyAPY.WithLabelValues(labels...).Set(r.SupplyAPY)
		if r.HasBorrow() {
			borrowAPY.WithLabelValues(labels...).Set(r.BorrowAPY)
		} else {
			borrowAPY.DeleteLabelValues(labels...)
		}
	}
	for c, s := range snap.ChainSpreads {
		chainSpread.WithLabelValues(string(c)).Set(s)
	}
	if snap.Strategy != nil {
		bestNetAPY.Set(snap.Strategy.NetAPY)
	}
}

// RecordPublish records a snapshot publish attempt.
func RecordPublish(err error) {
	snapshotsPublished.WithLabelValues(outcome(err == nil)).Inc()
}

// RecordPruned adds rows deleted by history retention.
func RecordPruned(n int64) {
	if n > 0 {
		historyPruned.Add(float64(n))
	}
}
