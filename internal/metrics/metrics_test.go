package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bft-labs/stableopt/internal/domain"
)

func TestRecordSourcePoll(t *testing.T) {
	before := testutil.ToFloat64(sourcePolls.WithLabelValues("llama", "failure"))
	RecordSourcePoll("llama", 0, errors.New("timeout"))
	if got := testutil.ToFloat64(sourcePolls.WithLabelValues("llama", "failure")); got != before+1 {
		t.Errorf("failure count = %v, want %v", got, before+1)
	}

	RecordSourcePoll("llama", 12, nil)
	if got := testutil.ToFloat64(sourceRates.WithLabelValues("llama")); got != 12 {
		t.Errorf("source rates = %v, want 12", got)
	}
}

func TestRecordSnapshot(t *testing.T) {
	m, _ := domain.NewMarketFromKey("aave_arb_usdc", domain.SourceLlama)
	snap := domain.Snapshot{
		Rates:        []domain.Rate{{Market: m, SupplyAPY: 5.5, BorrowAPY: 6}},
		ChainSpreads: map[domain.Chain]float64{domain.ChainArbitrum: 1.25},
		Strategy:     &domain.LoopStrategy{NetAPY: 9.5},
	}
	RecordSnapshot(snap)

	if got := testutil.ToFloat64(supplyAPY.WithLabelValues("aave_arb_usdc", "arbitrum", "aave-v3")); got != 5.5 {
		t.Errorf("supply gauge = %v, want 5.5", got)
	}
	if got := testutil.ToFloat64(chainSpread.WithLabelValues("arbitrum")); got != 1.25 {
		t.Errorf("spread gauge = %v, want 1.25", got)
	}
	if got := testutil.ToFloat64(bestNetAPY); got != 9.5 {
		t.Errorf("best net apy = %v, want 9.5", got)
	}
}

func TestExposition(t *testing.T) {
	RecordCycle(150*time.Millisecond, nil)
	RecordPublish(nil)
	RecordPruned(3)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"stableopt_cycle_duration_seconds",
		"stableopt_cycles_total",
		"stableopt_snapshots_published_total",
		"stableopt_history_pruned_rows_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}
