package stableopt

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/bft-labs/stableopt/internal/adapters/cache"
	"github.com/bft-labs/stableopt/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/stableopt/internal/adapters/http"
	"github.com/bft-labs/stableopt/internal/adapters/llama"
	"github.com/bft-labs/stableopt/internal/api"
	"github.com/bft-labs/stableopt/internal/app"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

const apiShutdownTimeout = 5 * time.Second

// Agent polls lending rates, ranks spread opportunities and sizes a looping
// strategy on every cycle. It can be embedded in other applications.
// Use New() to create an instance, then Start() to begin polling.
type Agent struct {
	config    Config
	lifecycle *app.Lifecycle
	poller    *app.Poller
	history   HistoryStore
	cache     Cache
	logger    Logger

	plugins []Plugin

	// ownedCache is closed on Stop when the agent created it.
	ownedCache *cache.MemoryCache

	mu       sync.RWMutex
	listener net.Listener
	done     chan struct{}
}

// New creates an Agent with the given configuration.
// The instance is created in StateStopped; call Start() to begin polling.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions(&http.Client{Timeout: cfg.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	lifecycle := app.NewLifecycle(logger, emitter)

	sources := o.sources
	if len(sources) == 0 {
		sources = []ports.RateSource{
			llama.NewSource(llama.NewClient("", httpClient), llama.DefaultPools(), logger),
		}
	}

	var owned *cache.MemoryCache
	snapshotCache := o.cache
	if snapshotCache == nil {
		owned = cache.NewMemoryCache(0)
		snapshotCache = owned
	}

	deps := app.Dependencies{
		Sources: sources,
		History: o.history,
		Cache:   snapshotCache,
		Logger:  logger,
	}
	if !o.ephemeral {
		deps.Snapshots = fs.NewSnapshotFileRepository(cfg.StateDir)
	}
	if cfg.ServiceURL != "" {
		deps.Publisher = httpAdapter.NewSnapshotPublisher(httpClient, logger)
	}

	pollerCfg := app.PollerConfig{
		PollInterval: cfg.PollInterval,
		Once:         cfg.Once,
		CacheTTL:     cfg.CacheTTL,
		Hostname:     hostname(),
		OSArch:       runtime.GOOS + "/" + runtime.GOARCH,
		AuthKey:      cfg.AuthKey,
		ServiceURL:   cfg.ServiceURL,
	}
	poller, err := app.NewPoller(pollerCfg, cfg.Params, deps, emitter)
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return nil, err
	}

	return &Agent{
		config:     cfg,
		lifecycle:  lifecycle,
		poller:     poller,
		history:    o.history,
		cache:      snapshotCache,
		logger:     logger,
		plugins:    o.plugins,
		ownedCache: owned,
	}, nil
}

// Start begins polling in the background and, when ListenAddr is set,
// serves the HTTP API. It returns once the listener is bound and every
// plugin is initialized.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	runCtx, err := a.lifecycle.Begin(ctx, "Start() called")
	if err != nil {
		return err
	}

	pluginCfg := PluginConfig{
		StateDir:    a.config.StateDir,
		ServiceURL:  a.config.ServiceURL,
		AuthKey:     a.config.AuthKey,
		Logger:      a.logger,
		History:     a.history,
		Params:      a.poller.Params,
		Reconfigure: a.Reconfigure,
	}
	for i, p := range a.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			a.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			a.shutdownPlugins(a.plugins[:i])
			a.lifecycle.Abort("plugin init failed: "+p.Name(), err)
			return err
		}
		a.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if a.config.ListenAddr != "" {
		if err := a.serve(); err != nil {
			a.shutdownPlugins(a.plugins)
			a.lifecycle.Abort("api listen failed", err)
			return err
		}
	}

	if err := a.lifecycle.Ready("poller starting"); err != nil {
		// an API worker failed before the poller started
		if stopErr := a.Stop(); stopErr != nil {
			return stopErr
		}
		return err
	}

	done := make(chan struct{})
	a.done = done
	a.lifecycle.Go("poll", func(ctx context.Context) error {
		defer close(done)
		return a.poller.Run(ctx)
	})
	return nil
}

// serve binds the API listener and runs the server as two workers: one
// serving and one shutting the server down when the run ends.
func (a *Agent) serve() error {
	ln, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		return err
	}
	a.listener = ln

	handler := api.NewRouter(api.Config{
		Status: func() string { return a.Status().String() },
		Check:  a.cache.Ping,
	}, a.poller, a.history, a.logger)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("api listening", log.String("addr", ln.Addr().String()))

	a.lifecycle.Go("api", func(context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	a.lifecycle.Go("api-shutdown", func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("api shutdown", log.Err(err))
		}
		return nil
	})
	return nil
}

// Stop shuts the agent down, waiting up to 30 seconds for the poll loop
// and API server. It returns the error that ended the run: the failed
// cycle in once mode, the worker failure that crashed the agent, or
// ErrShutdownTimeout. A clean shutdown returns nil.
func (a *Agent) Stop() error {
	return a.lifecycle.Shutdown(app.ShutdownTimeout, func() {
		a.shutdownPlugins(a.plugins)
		if a.ownedCache != nil {
			_ = a.ownedCache.Close()
		}
	})
}

// Err returns the error that ended the current or last run, if any.
func (a *Agent) Err() error {
	return a.lifecycle.Err()
}

// shutdownPlugins shuts plugins down in reverse order.
func (a *Agent) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			a.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			a.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (a *Agent) Status() State {
	return convertState(a.lifecycle.State())
}

// Done is closed when the poll loop exits. In once mode that happens
// after the single cycle. Nil before the first Start.
func (a *Agent) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Addr returns the bound API address, or nil when the API is disabled.
func (a *Agent) Addr() net.Addr {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Latest returns the most recent snapshot and whether one exists.
func (a *Agent) Latest() (Snapshot, bool) {
	return a.poller.Latest()
}

// Params returns the strategy parameters in effect.
func (a *Agent) Params() Params {
	return a.poller.Params()
}

// Reconfigure swaps the strategy parameters. The change applies from the
// next cycle. Invalid parameters are rejected and the current ones kept.
func (a *Agent) Reconfigure(params Params) error {
	return a.poller.SetParams(params)
}

// Cycle runs one optimization cycle synchronously, outside the poll loop.
func (a *Agent) Cycle(ctx context.Context) (Snapshot, error) {
	return a.poller.Cycle(ctx)
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnCycle(snap domain.Snapshot, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnCycle(CycleEvent{
		SnapshotID:    snap.ID,
		Rates:         len(snap.Rates),
		Opportunities: len(snap.Opportunities),
		Best:          snap.Best,
		Duration:      duration,
	})
}

func (e *eventEmitterWrapper) OnSourceError(source string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnSourceError(SourceErrorEvent{Source: source, Error: err})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
