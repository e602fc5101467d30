package stableopt

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
)

// Default configuration values.
const (
	DefaultPollInterval = 5 * time.Minute
	DefaultHTTPTimeout  = 15 * time.Second
)

// Config holds the configuration for an optimizer agent.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// StateDir holds snapshot.json and status.json. Required.
	StateDir string

	// PollInterval is the delay between optimization cycles.
	PollInterval time.Duration

	// HTTPTimeout applies to the default HTTP client.
	HTTPTimeout time.Duration

	// CacheTTL bounds cached snapshots. Zero means twice PollInterval.
	CacheTTL time.Duration

	// ListenAddr serves the HTTP API (e.g. ":8080"). Empty disables it.
	ListenAddr string

	// ServiceURL receives every snapshot. Empty disables publishing.
	ServiceURL string
	AuthKey    string

	// Once runs a single cycle; Done is closed when it completes.
	Once bool

	// Params are the initial strategy parameters.
	Params Params
}

// DefaultConfig returns a Config with default values. StateDir must still
// be set.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		HTTPTimeout:  DefaultHTTPTimeout,
		Params:       optimizer.DefaultParams(),
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Params.LTV == 0 && c.Params.StopCondition == 0 && c.Params.InitialCapital == 0 {
		assets, chains := c.Params.Assets, c.Params.Chains
		c.Params = optimizer.DefaultParams()
		c.Params.Assets, c.Params.Chains = assets, chains
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("%w: state dir is required", domain.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}
