package stableopt

import (
	"net/http"
)

// Option configures optional behavior of an Agent.
type Option func(*options)

// options holds the optional configuration for an Agent instance.
type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	sources      []RateSource
	cache        Cache
	history      HistoryStore
	ephemeral    bool
}

// defaultOptions returns options with sensible defaults.
func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
	}
}

// WithHTTPClient sets a custom HTTP client for rate sources and publishing.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for agent events.
// Events are called synchronously from the poll goroutine.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the agent starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithSources replaces the default DeFiLlama source with the given ones.
func WithSources(sources ...RateSource) Option {
	return func(o *options) {
		o.sources = append(o.sources, sources...)
	}
}

// WithCache sets the cache for the latest snapshot. If not provided, an
// in-memory cache owned by the agent is used.
func WithCache(cache Cache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithHistoryStore records every observation in store. The caller keeps
// ownership and closes it after Stop.
func WithHistoryStore(store HistoryStore) Option {
	return func(o *options) {
		o.history = store
	}
}

// WithEphemeralState keeps snapshots and agent state in memory only. The
// state directory is neither read nor written, so one-shot runs cannot
// overwrite the files of a running daemon.
func WithEphemeralState() Option {
	return func(o *options) {
		o.ephemeral = true
	}
}
