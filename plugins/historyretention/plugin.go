// Package historyretention periodically prunes old rate observations from
// the history store so it does not grow without bound.
package historyretention

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/stableopt/internal/metrics"
	"github.com/bft-labs/stableopt/pkg/log"
	"github.com/bft-labs/stableopt/pkg/stableopt"
)

// Default retention settings.
const (
	DefaultCheckInterval = time.Hour
	DefaultMaxAge        = 90 * 24 * time.Hour
)

// Plugin prunes the history store on a fixed interval.
type Plugin struct {
	checkInterval  time.Duration
	maxAge         time.Duration
	runImmediately bool
	now            func() time.Time

	history stableopt.HistoryStore
	logger  stableopt.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds configuration options for the retention plugin.
type Config struct {
	// CheckInterval is how often old observations are pruned.
	// Default: 1 hour
	CheckInterval time.Duration

	// MaxAge is how long observations are kept.
	// Default: 90 days
	MaxAge time.Duration

	// RunImmediately prunes once on startup.
	RunImmediately bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  DefaultCheckInterval,
		MaxAge:         DefaultMaxAge,
		RunImmediately: true,
	}
}

// New creates a retention plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Plugin{
		checkInterval:  cfg.CheckInterval,
		maxAge:         cfg.MaxAge,
		runImmediately: cfg.RunImmediately,
		now:            time.Now,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "historyretention"
}

// Initialize starts the prune loop. Without a history store the plugin
// does nothing.
func (p *Plugin) Initialize(ctx context.Context, cfg stableopt.PluginConfig) error {
	p.history = cfg.History
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}

	if p.history == nil {
		p.logger.Warn("history retention disabled: no history store")
		return nil
	}

	pruneCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("history retention started",
		log.Duration("max_age", p.maxAge),
		log.Duration("interval", p.checkInterval),
	)

	p.wg.Add(1)
	go p.pruneLoop(pruneCtx)
	return nil
}

// Shutdown stops the prune loop.
func (p *Plugin) Shutdown(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) pruneLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.pruneOnce(ctx)
	}

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pruneOnce(ctx)
		}
	}
}

// pruneOnce deletes observations older than maxAge.
func (p *Plugin) pruneOnce(ctx context.Context) {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.history.Prune(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("history prune failed", log.Err(err))
		}
		return
	}
	metrics.RecordPruned(n)
	if n > 0 {
		p.logger.Info("history pruned",
			log.Int64("rows", n),
			log.Time("before", cutoff),
		)
	}
}

// Ensure Plugin implements stableopt.Plugin.
var _ stableopt.Plugin = (*Plugin)(nil)
