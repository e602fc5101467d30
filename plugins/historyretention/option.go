package historyretention

import "github.com/bft-labs/stableopt/pkg/stableopt"

// WithHistoryRetention returns a stableopt Option that prunes observations
// older than cfg.MaxAge every cfg.CheckInterval.
//
// Usage:
//
//	agent, err := stableopt.New(cfg,
//	    stableopt.WithHistoryStore(store),
//	    historyretention.WithHistoryRetention(historyretention.Config{
//	        CheckInterval: time.Hour,
//	        MaxAge:        30 * 24 * time.Hour,
//	    }),
//	)
func WithHistoryRetention(cfg Config) stableopt.Option {
	return stableopt.WithPlugin(New(cfg))
}
