package cliconfig

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
)

// Defaults for the CLI configuration.
const (
	DefaultListenAddr       = ":8080"
	DefaultPollInterval     = 5 * time.Minute
	DefaultHTTPTimeout      = 15 * time.Second
	DefaultRPCRateLimit     = 10.0
	DefaultHistoryRetention = 90 * 24 * time.Hour
	DefaultLlamaURL         = "https://yields.llama.fi"
)

// Config holds CLI configuration for stableopt.
type Config struct {
	StateDir    string
	HistoryPath string

	// ListenAddr serves the HTTP API. Empty disables it.
	ListenAddr string

	// ServiceURL receives published snapshots. Empty disables publishing.
	ServiceURL string
	AuthKey    string

	PollInterval time.Duration
	HTTPTimeout  time.Duration
	CacheTTL     time.Duration

	LlamaURL     string
	RPCRateLimit float64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryRetention time.Duration
	Once             bool

	Strategy StrategyConfig
	Chains   map[string]ChainConfig
	Markets  []MarketConfig
}

// StrategyConfig holds the [strategy] section.
type StrategyConfig struct {
	LTV            float64  `toml:"ltv"`
	StopCondition  float64  `toml:"stop_condition"`
	MinSpread      float64  `toml:"min_spread"`
	InitialCapital float64  `toml:"initial_capital"`
	RebalanceHours float64  `toml:"rebalance_hours"`
	GasCostPerTx   float64  `toml:"gas_cost_per_tx"`
	Chains         []string `toml:"chains"`
	Assets         []string `toml:"assets"`
	SameProtocol   bool     `toml:"same_protocol"`
}

// ChainConfig holds a [chains.<name>] section.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
}

// MarketConfig holds one [[markets]] entry.
type MarketConfig struct {
	Source   string `toml:"source"`
	Key      string `toml:"key"`
	Chain    string `toml:"chain"`
	Asset    string `toml:"asset"`
	PoolID   string `toml:"pool_id"`
	MarketID string `toml:"market_id"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// DefaultStrategy returns the [strategy] defaults.
func DefaultStrategy() StrategyConfig {
	p := optimizer.DefaultParams()
	return StrategyConfig{
		LTV:            p.LTV,
		StopCondition:  p.StopCondition,
		InitialCapital: p.InitialCapital,
		RebalanceHours: p.RebalanceHours,
		GasCostPerTx:   p.GasCostPerTx,
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       DefaultListenAddr,
		PollInterval:     DefaultPollInterval,
		HTTPTimeout:      DefaultHTTPTimeout,
		LlamaURL:         DefaultLlamaURL,
		RPCRateLimit:     DefaultRPCRateLimit,
		HistoryRetention: DefaultHistoryRetention,
		StateDir:         "", // Derived from $HOME during Validate
		AuthKey:          os.Getenv("STABLEOPT_AUTH_KEY"),
		Strategy:         DefaultStrategy(),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("%w: state-dir is required: %v", domain.ErrInvalidConfig, err)
		}
		c.StateDir = filepath.Join(home, ".stableopt")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(c.StateDir, "history.db")
	}

	// Ensure no trailing slash
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	c.LlamaURL = strings.TrimRight(c.LlamaURL, "/")
	if c.LlamaURL == "" {
		c.LlamaURL = DefaultLlamaURL
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("%w: history retention must not be negative", domain.ErrInvalidConfig)
	}
	if !(c.RPCRateLimit >= 0) || math.IsInf(c.RPCRateLimit, 1) {
		return fmt.Errorf("%w: rpc rate limit must be a finite non-negative number", domain.ErrInvalidConfig)
	}

	if _, err := c.Params(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	for name := range c.Chains {
		if _, err := domain.ParseChain(name); err != nil {
			return fmt.Errorf("%w: chains.%s: %v", domain.ErrInvalidConfig, name, err)
		}
	}
	for i, m := range c.Markets {
		if _, err := m.market(); err != nil {
			return fmt.Errorf("%w: markets[%d]: %v", domain.ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// Params converts the [strategy] section into optimizer parameters.
func (c Config) Params() (optimizer.Params, error) {
	return c.Strategy.Params()
}

// Params converts the section into validated optimizer parameters.
func (s StrategyConfig) Params() (optimizer.Params, error) {
	p := optimizer.Params{
		Assets:         s.Assets,
		SameProtocol:   s.SameProtocol,
		MinSpread:      s.MinSpread,
		LTV:            s.LTV,
		StopCondition:  s.StopCondition,
		InitialCapital: s.InitialCapital,
		RebalanceHours: s.RebalanceHours,
		GasCostPerTx:   s.GasCostPerTx,
	}
	for _, name := range s.Chains {
		chain, err := domain.ParseChain(name)
		if err != nil {
			return optimizer.Params{}, fmt.Errorf("strategy.chains: %w", err)
		}
		p.Chains = append(p.Chains, chain)
	}
	if err := p.Validate(); err != nil {
		return optimizer.Params{}, err
	}
	return p, nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.AuthKey != "" {
		c.AuthKey = "*****"
	}
	if c.RedisPassword != "" {
		c.RedisPassword = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value from a pointer if not nil and flag not
// changed. Zero is a valid value.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setStringsFromString splits a comma-separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*dst = out
}
