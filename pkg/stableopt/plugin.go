package stableopt

import "context"

// Plugin extends an agent with background functionality.
// Plugins are initialized in registration order on Start and shut down in
// reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig gives plugins access to the running agent.
type PluginConfig struct {
	StateDir   string
	ServiceURL string
	AuthKey    string
	Logger     Logger

	// History is nil when the agent has no history store.
	History HistoryStore

	// Params returns the strategy parameters in effect.
	Params func() Params

	// Reconfigure swaps the strategy parameters for the next cycle.
	Reconfigure func(Params) error
}

// BasePlugin provides a name and no-op lifecycle methods. Embed it to
// implement only the methods a plugin needs.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin with the given name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p BasePlugin) Name() string                                   { return p.name }
func (p BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (p BasePlugin) Shutdown(context.Context) error                 { return nil }
