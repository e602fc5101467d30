// Package stableopt provides an embeddable stablecoin lending optimizer.
//
// An Agent polls supply and borrow rates from lending markets (DeFiLlama,
// Aave V3, Morpho Blue), ranks every supply/borrow pair by spread and sizes
// a leveraged looping strategy for the best one. Each cycle produces a
// [Snapshot] that is persisted, cached, optionally published and served
// over HTTP.
//
// # Basic Usage
//
//	cfg := stableopt.DefaultConfig()
//	cfg.StateDir = "/var/lib/stableopt"
//	cfg.ListenAddr = ":8080"
//
//	agent, err := stableopt.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := agent.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Stop()
//
// Without [WithSources] the agent polls the default DeFiLlama pools.
//
// # Event Handling
//
// Implement [EventHandler] (or embed [BaseEventHandler]) and pass it via
// [WithEventHandler] to be notified about state changes, completed cycles
// and failed sources.
//
// # Plugins
//
// Plugins run alongside the poll loop and can swap strategy parameters at
// runtime through [PluginConfig.Reconfigure]:
//
//	import "github.com/bft-labs/stableopt/plugins/configwatcher"
//	import "github.com/bft-labs/stableopt/plugins/historyretention"
//
//	agent, err := stableopt.New(cfg,
//	    stableopt.WithHistoryStore(store),
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig(path)),
//	    historyretention.WithHistoryRetention(historyretention.DefaultConfig()),
//	)
//
// # Lifecycle States
//
// An Agent can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Agent.Status] to
// query the current state.
package stableopt
