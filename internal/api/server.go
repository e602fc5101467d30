// Package api serves the latest optimization snapshot, strategy sizing and
// rate history over HTTP.
package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

const healthCheckTimeout = 2 * time.Second

// Provider exposes the agent's current results.
type Provider interface {
	Latest() (domain.Snapshot, bool)
	Params() optimizer.Params
}

// Config configures the router.
type Config struct {
	// RequestLimit requests per Window are allowed per client IP.
	// Zero selects the defaults.
	RequestLimit int
	Window       time.Duration

	// Status reports the lifecycle state for /healthz.
	Status func() string

	// Check tests the snapshot cache for /healthz. A failing check
	// turns the response into a 503.
	Check func(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	provider Provider
	history  ports.HistoryStore
	logger   ports.Logger
	status   func() string
	check    func(ctx context.Context) error
}

// NewRouter builds the HTTP handler. history may be nil, in which case the
// history endpoint answers 503.
func NewRouter(cfg Config, provider Provider, history ports.HistoryStore, logger ports.Logger) http.Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = DefaultRequestLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	s := &Server{provider: provider, history: history, logger: logger, status: cfg.Status, check: cfg.Check}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(rateLimit(cfg.RequestLimit, cfg.Window))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/rates", s.rates)
		r.Get("/opportunities", s.opportunities)
		r.Get("/strategy", s.strategy)
		r.Get("/history/{market}", s.marketHistory)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.status != nil {
		state = s.status()
	}
	_, ready := s.provider.Latest()
	body := map[string]any{
		"status": "ok",
		"state":  state,
		"ready":  ready,
	}

	code := http.StatusOK
	if s.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.check(ctx); err != nil {
			s.logger.Warn("health check failed", log.Err(err))
			code = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
	}
	s.respond(w, r, code, body)
}

// latest writes a 503 and returns false when no snapshot exists yet.
func (s *Server) latest(w http.ResponseWriter) (domain.Snapshot, bool) {
	snap, ok := s.provider.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_snapshot", "no optimization cycle has completed yet")
	}
	return snap, ok
}

type ratesResponse struct {
	SnapshotID string        `json:"snapshot_id"`
	TakenAt    time.Time     `json:"taken_at"`
	Rates      []domain.Rate `json:"rates"`
}

func (s *Server) rates(w http.ResponseWriter, r *http.Request) {
	chain, ok := chainParam(w, r)
	if !ok {
		return
	}
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	asset := r.URL.Query().Get("asset")
	out := make([]domain.Rate, 0, len(snap.Rates))
	for _, rate := range snap.Rates {
		if chain != "" && rate.Market.Chain != chain {
			continue
		}
		if asset != "" && !strings.EqualFold(asset, rate.Market.Asset) {
			continue
		}
		out = append(out, rate)
	}
	s.respond(w, r, http.StatusOK, ratesResponse{SnapshotID: snap.ID, TakenAt: snap.TakenAt, Rates: out})
}

type opportunitiesResponse struct {
	SnapshotID    string                   `json:"snapshot_id"`
	TakenAt       time.Time                `json:"taken_at"`
	Opportunities []domain.Opportunity     `json:"opportunities"`
	ChainSpreads  map[domain.Chain]float64 `json:"chain_spreads,omitempty"`
}

func (s *Server) opportunities(w http.ResponseWriter, r *http.Request) {
	chain, ok := chainParam(w, r)
	if !ok {
		return
	}
	minSpread, ok := floatParam(w, r, "min_spread", 0)
	if !ok {
		return
	}
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	out := make([]domain.Opportunity, 0, len(snap.Opportunities))
	for _, o := range snap.Opportunities {
		if chain != "" && o.Chain() != chain {
			continue
		}
		if o.Spread < minSpread {
			continue
		}
		out = append(out, o)
	}
	s.respond(w, r, http.StatusOK, opportunitiesResponse{
		SnapshotID:    snap.ID,
		TakenAt:       snap.TakenAt,
		Opportunities: out,
		ChainSpreads:  snap.ChainSpreads,
	})
}

type strategyResponse struct {
	SnapshotID  string              `json:"snapshot_id"`
	Opportunity domain.Opportunity  `json:"opportunity"`
	Strategy    domain.LoopStrategy `json:"strategy"`
	Plan        domain.Plan         `json:"plan"`
	Gas         optimizer.Gas       `json:"gas"`
}

func (s *Server) strategy(w http.ResponseWriter, r *http.Request) {
	p := s.provider.Params()
	var ok bool
	if p.LTV, ok = floatParam(w, r, "ltv", p.LTV); !ok {
		return
	}
	if p.StopCondition, ok = floatParam(w, r, "stop", p.StopCondition); !ok {
		return
	}
	if p.InitialCapital, ok = floatParam(w, r, "capital", p.InitialCapital); !ok {
		return
	}
	if p.RebalanceHours, ok = floatParam(w, r, "rebalance_hours", p.RebalanceHours); !ok {
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}

	snap, ok := s.latest(w)
	if !ok {
		return
	}
	if snap.Best == nil {
		writeError(w, http.StatusNotFound, "no_opportunity", "the latest snapshot has no opportunity")
		return
	}

	best := *snap.Best
	strat, err := optimizer.LoopStrategy(best.Supply.SupplyAPY, best.Spread, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}
	gas, err := optimizer.GasCost(strat.Loops, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, strategyResponse{
		SnapshotID:  snap.ID,
		Opportunity: best,
		Strategy:    strat,
		Plan:        optimizer.BuildPlan(best, strat),
		Gas:         gas,
	})
}

type historyResponse struct {
	Market       string        `json:"market"`
	Observations []domain.Rate `json:"observations"`
}

func (s *Server) marketHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "market")
	if _, _, _, err := domain.ParseMarketKey(key); err != nil {
		writeError(w, http.StatusBadRequest, "unknown_market", err.Error())
		return
	}
	from, ok := timeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := timeParam(w, r, "to")
	if !ok {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_range", "to is before from")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled", "no history store configured")
		return
	}

	rates, err := s.history.Range(r.Context(), key, from, to)
	if err != nil {
		s.logger.Error("history query failed", log.String("market", key), log.Err(err))
		writeError(w, http.StatusInternalServerError, "internal", "history query failed")
		return
	}
	if rates == nil {
		rates = []domain.Rate{}
	}
	s.respond(w, r, http.StatusOK, historyResponse{Market: key, Observations: rates})
}

func chainParam(w http.ResponseWriter, r *http.Request) (domain.Chain, bool) {
	raw := r.URL.Query().Get("chain")
	if raw == "" {
		return "", true
	}
	c, err := domain.ParseChain(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chain", err.Error())
		return "", false
	}
	return c, true
}

func floatParam(w http.ResponseWriter, r *http.Request, name string, def float64) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, http.StatusBadRequest, "invalid_"+name, fmt.Sprintf("%q is not a finite number", raw))
		return 0, false
	}
	return v, true
}

func timeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "expected RFC3339 time")
		return time.Time{}, false
	}
	return t, true
}
