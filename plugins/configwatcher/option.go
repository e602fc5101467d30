package configwatcher

import "github.com/bft-labs/stableopt/pkg/stableopt"

// WithConfigWatcher returns a stableopt Option that reloads the [strategy]
// section of cfg.Path whenever the file changes.
//
// Usage:
//
//	agent, err := stableopt.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig(path)),
//	)
func WithConfigWatcher(cfg Config) stableopt.Option {
	return stableopt.WithPlugin(New(cfg))
}
