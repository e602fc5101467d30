package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/metrics"
	"github.com/bft-labs/stableopt/internal/optimizer"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

// LatestSnapshotKey is the cache key holding the JSON of the latest snapshot.
const LatestSnapshotKey = "snapshot:latest"

// PollerConfig contains configuration for the poll loop.
type PollerConfig struct {
	PollInterval time.Duration
	Once         bool

	// CacheTTL bounds how long a cached snapshot stays valid.
	// Zero means twice the poll interval.
	CacheTTL time.Duration

	// Metadata for publish operations
	Hostname   string
	OSArch     string
	AuthKey    string
	ServiceURL string
}

// Dependencies are the ports a Poller works with. Only Sources is required.
type Dependencies struct {
	Sources   []ports.RateSource
	Snapshots ports.SnapshotRepository
	History   ports.HistoryStore
	Cache     ports.Cache
	Publisher ports.Publisher
	Logger    ports.Logger
}

// CycleEmitter is notified about cycle results.
type CycleEmitter interface {
	OnCycle(snap domain.Snapshot, duration time.Duration)
	OnSourceError(source string, err error)
}

// Poller runs optimization cycles: fetch rates from every source, evaluate
// them and store, cache and publish the resulting snapshot.
type Poller struct {
	config  PollerConfig
	deps    Dependencies
	logger  ports.Logger
	emitter CycleEmitter
	now     func() time.Time

	mu     sync.RWMutex
	params optimizer.Params
	latest domain.Snapshot
	state  domain.State
}

// NewPoller creates a poller. The params are validated.
func NewPoller(config PollerConfig, params optimizer.Params, deps Dependencies, emitter CycleEmitter) (*Poller, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(deps.Sources) == 0 {
		return nil, fmt.Errorf("%w: no rate sources", domain.ErrInvalidConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Poller{
		config:  config,
		deps:    deps,
		logger:  logger,
		emitter: emitter,
		now:     time.Now,
		params:  params,
	}, nil
}

// SetParams swaps the strategy parameters used by the next cycle.
func (p *Poller) SetParams(params optimizer.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()

	p.logger.Info("strategy parameters updated",
		log.Float64("ltv", params.LTV),
		log.Float64("stop_condition", params.StopCondition),
		log.Float64("min_spread", params.MinSpread),
	)
	return nil
}

// Params returns the current strategy parameters.
func (p *Poller) Params() optimizer.Params {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

// Latest returns the most recent snapshot and whether one exists.
func (p *Poller) Latest() (domain.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, !p.latest.Empty()
}

// State returns the agent bookkeeping state.
func (p *Poller) State() domain.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Restore loads the last snapshot and state so a restarted agent serves data
// before its first cycle completes. The snapshot repository and the cache
// are both consulted and the newer snapshot wins.
func (p *Poller) Restore(ctx context.Context) {
	var (
		snap  domain.Snapshot
		state domain.State
		err   error
	)
	if p.deps.Snapshots != nil {
		if snap, err = p.deps.Snapshots.LoadSnapshot(ctx); err != nil {
			p.logger.Error("failed to load snapshot", log.Err(err))
		}
		if state, err = p.deps.Snapshots.LoadState(ctx); err != nil {
			p.logger.Error("failed to load state", log.Err(err))
		}
	}

	source := "repository"
	if cached, ok := p.cachedSnapshot(ctx); ok && cached.TakenAt.After(snap.TakenAt) {
		snap, source = cached, "cache"
	}

	p.mu.Lock()
	p.latest = snap
	p.state = state
	p.mu.Unlock()

	if !snap.Empty() {
		p.logger.Info("restored snapshot",
			log.String("id", snap.ID),
			log.String("from", source),
			log.Time("taken_at", snap.TakenAt),
			log.Int("rates", len(snap.Rates)),
		)
	}
}

// cachedSnapshot reads the latest snapshot from the cache. Undecodable
// entries are treated as a miss.
func (p *Poller) cachedSnapshot(ctx context.Context) (domain.Snapshot, bool) {
	if p.deps.Cache == nil {
		return domain.Snapshot{}, false
	}
	data, ok := p.deps.Cache.Get(ctx, LatestSnapshotKey)
	if !ok {
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.logger.Warn("discarding cached snapshot", log.Err(err))
		return domain.Snapshot{}, false
	}
	return snap, !snap.Empty()
}

// Run executes the poll loop until the context is canceled.
// With Once set it runs a single cycle and returns its error.
func (p *Poller) Run(ctx context.Context) error {
	p.Restore(ctx)

	b := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for {
		_, err := p.Cycle(ctx)
		if p.config.Once {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, domain.ErrSourcesUnavailable) {
			p.logger.Warn("backing off", log.Duration("delay", b.Current()))
			if err := b.Sleep(ctx); err != nil {
				return err
			}
			continue
		}
		b.Reset()

		t := time.NewTimer(p.config.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

type fetchResult struct {
	rates []domain.Rate
	err   error
}

// fetch polls every source concurrently. A failing source does not cancel
// the others.
func (p *Poller) fetch(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(p.deps.Sources))

	var g errgroup.Group
	for i, src := range p.deps.Sources {
		g.Go(func() error {
			rates, err := src.Fetch(ctx)
			results[i] = fetchResult{rates: rates, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Cycle runs one optimization cycle and returns the new snapshot.
func (p *Poller) Cycle(ctx context.Context) (domain.Snapshot, error) {
	start := p.now()
	snap, err := p.cycle(ctx, start)
	duration := p.now().Sub(start)
	metrics.RecordCycle(duration, err)

	p.mu.Lock()
	if err != nil {
		p.state.RecordFailure(err, start)
	} else {
		p.latest = snap
		p.state.RecordSuccess(snap.ID, start)
	}
	state := p.state
	p.mu.Unlock()

	if p.deps.Snapshots != nil {
		if serr := p.deps.Snapshots.SaveState(ctx, state); serr != nil {
			p.logger.Error("failed to save state", log.Err(serr))
		}
	}

	if err != nil {
		p.logger.Error("cycle failed",
			log.Err(err),
			log.Int("consecutive_failures", state.ConsecutiveFailures),
		)
		return domain.Snapshot{}, err
	}

	p.logger.Info("cycle complete",
		log.String("snapshot", snap.ID),
		log.Int("rates", len(snap.Rates)),
		log.Int("opportunities", len(snap.Opportunities)),
		log.Duration("duration", duration),
	)
	if p.emitter != nil {
		p.emitter.OnCycle(snap, duration)
	}
	return snap, nil
}

func (p *Poller) cycle(ctx context.Context, now time.Time) (domain.Snapshot, error) {
	var (
		rates   []domain.Rate
		errs    []error
		failed  = map[string]string{}
		results = p.fetch(ctx)
	)
	for i, res := range results {
		name := p.deps.Sources[i].Name()
		metrics.RecordSourcePoll(name, len(res.rates), res.err)
		if res.err != nil {
			p.logger.Warn("rate source failed", log.String("source", name), log.Err(res.err))
			failed[name] = res.err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, res.err))
			if p.emitter != nil {
				p.emitter.OnSourceError(name, res.err)
			}
			continue
		}
		p.logger.Debug("rate source polled", log.String("source", name), log.Int("rates", len(res.rates)))
		rates = append(rates, res.rates...)
	}

	if len(errs) == len(results) {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrSourcesUnavailable, errors.Join(errs...))
	}

	if p.deps.History != nil && len(rates) > 0 {
		if err := p.deps.History.Append(ctx, rates); err != nil {
			p.logger.Error("failed to append history", log.Err(err))
		}
	}

	snap, err := optimizer.Evaluate(rates, p.Params(), now)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(failed) > 0 {
		snap.Errors = failed
	}

	p.store(ctx, snap)
	metrics.RecordSnapshot(snap)
	p.publish(ctx, snap)
	return snap, nil
}

// store persists and caches the snapshot. Failures are logged only.
func (p *Poller) store(ctx context.Context, snap domain.Snapshot) {
	if p.deps.Snapshots != nil {
		if err := p.deps.Snapshots.SaveSnapshot(ctx, snap); err != nil {
			p.logger.Error("failed to save snapshot", log.Err(err))
		}
	}
	if p.deps.Cache != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			p.logger.Error("failed to encode snapshot", log.Err(err))
			return
		}
		p.deps.Cache.Set(ctx, LatestSnapshotKey, data, p.cacheTTL())
	}
}

func (p *Poller) cacheTTL() time.Duration {
	if p.config.CacheTTL > 0 {
		return p.config.CacheTTL
	}
	if p.config.PollInterval > 0 {
		return 2 * p.config.PollInterval
	}
	return time.Minute
}

func (p *Poller) publish(ctx context.Context, snap domain.Snapshot) {
	if p.deps.Publisher == nil || p.config.ServiceURL == "" {
		return
	}
	meta := ports.PublishMetadata{
		Hostname:   p.config.Hostname,
		OSArch:     p.config.OSArch,
		AuthKey:    p.config.AuthKey,
		ServiceURL: p.config.ServiceURL,
	}
	err := p.deps.Publisher.Publish(ctx, snap, meta)
	metrics.RecordPublish(err)
	if err != nil {
		p.logger.Error("publish failed", log.Err(err), log.String("snapshot", snap.ID))
	}
}
