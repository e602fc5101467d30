// Package configwatcher reloads strategy parameters when the stableopt
// config file changes. Only the [strategy] section is re-read; everything
// else requires a restart.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/stableopt/internal/cliconfig"
	"github.com/bft-labs/stableopt/pkg/log"
	"github.com/bft-labs/stableopt/pkg/stableopt"
)

// DefaultDebounceDelay coalesces the burst of events editors emit on save.
const DefaultDebounceDelay = 100 * time.Millisecond

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Base is the strategy the file's [strategy] section is applied on top of.
	Base cliconfig.StrategyConfig
}

// DefaultConfig returns a Config watching path with default strategy values.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: DefaultDebounceDelay,
		Base:          cliconfig.DefaultStrategy(),
	}
}

// Plugin watches the config file and swaps the agent's strategy parameters.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	base          cliconfig.StrategyConfig

	logger      stableopt.Logger
	reconfigure func(stableopt.Params) error
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	debounce    *time.Timer
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		base:          cfg.Base,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg stableopt.PluginConfig) error {
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.reconfigure = cfg.Reconfigure

	if p.path == "" || p.reconfigure == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watching the directory survives editors that replace the file on save.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("config watcher started", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the file's strategy. A file that fails to parse or
// validate leaves the running parameters untouched.
func (p *Plugin) reload() {
	params, err := cliconfig.LoadStrategy(p.path, p.base)
	if err == nil {
		err = p.reconfigure(params)
	}
	switch {
	case errors.Is(err, stableopt.ErrInvalidStrategy):
		p.logger.Warn("ignoring invalid strategy", log.String("path", p.path), log.Err(err))
	case err != nil:
		p.logger.Error("strategy reload failed", log.String("path", p.path), log.Err(err))
	default:
		p.logger.Info("strategy reloaded",
			log.String("path", p.path),
			log.Float64("ltv", params.LTV),
			log.Float64("stop_condition", params.StopCondition),
			log.Float64("min_spread", params.MinSpread),
		)
	}
}

// Ensure Plugin implements stableopt.Plugin.
var _ stableopt.Plugin = (*Plugin)(nil)
