package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/stableopt/internal/optimizer"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	StateDir         string   `toml:"state_dir"`
	HistoryPath      string   `toml:"history_path"`
	ListenAddr       string   `toml:"listen"`
	ServiceURL       string   `toml:"service_url"`
	AuthKey          string   `toml:"auth_key"`
	PollInterval     string   `toml:"poll_interval"`
	HTTPTimeout      string   `toml:"http_timeout"`
	CacheTTL         string   `toml:"cache_ttl"`
	LlamaURL         string   `toml:"llama_url"`
	RPCRateLimit     *float64 `toml:"rpc_rate_limit"`
	RedisAddr        string   `toml:"redis_addr"`
	RedisPassword    string   `toml:"redis_password"`
	RedisDB          int      `toml:"redis_db"`
	HistoryRetention string   `toml:"history_retention"`
	Once             *bool    `toml:"once"`

	Strategy FileStrategy           `toml:"strategy"`
	Chains   map[string]ChainConfig `toml:"chains"`
	Markets  []MarketConfig         `toml:"markets"`
}

// FileStrategy is the [strategy] section as read from TOML. Nil values
// mean "not set".
type FileStrategy struct {
	LTV            *float64 `toml:"ltv"`
	StopCondition  *float64 `toml:"stop_condition"`
	MinSpread      *float64 `toml:"min_spread"`
	InitialCapital *float64 `toml:"initial_capital"`
	RebalanceHours *float64 `toml:"rebalance_hours"`
	GasCostPerTx   *float64 `toml:"gas_cost_per_tx"`
	Chains         []string `toml:"chains"`
	Assets         []string `toml:"assets"`
	SameProtocol   *bool    `toml:"same_protocol"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.stableopt/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".stableopt", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("history-path", fc.HistoryPath, &cfg.HistoryPath)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("llama-url", fc.LlamaURL, &cfg.LlamaURL)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cache-ttl", fc.CacheTTL, &cfg.CacheTTL); err != nil {
		return err
	}
	if err := s.setDuration("retention", fc.HistoryRetention, &cfg.HistoryRetention); err != nil {
		return err
	}

	s.setFloat("rpc-rate", fc.RPCRateLimit, &cfg.RPCRateLimit)
	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setBool("once", fc.Once, &cfg.Once)

	applyStrategy(s, fc.Strategy, &cfg.Strategy)

	// Chains and markets have no flag equivalents.
	if len(fc.Chains) > 0 {
		cfg.Chains = fc.Chains
	}
	if len(fc.Markets) > 0 {
		cfg.Markets = fc.Markets
	}
	return nil
}

func applyStrategy(s *configSetter, fs FileStrategy, dst *StrategyConfig) {
	s.setFloat("ltv", fs.LTV, &dst.LTV)
	s.setFloat("stop", fs.StopCondition, &dst.StopCondition)
	s.setFloat("min-spread", fs.MinSpread, &dst.MinSpread)
	s.setFloat("capital", fs.InitialCapital, &dst.InitialCapital)
	s.setFloat("rebalance-hours", fs.RebalanceHours, &dst.RebalanceHours)
	s.setFloat("gas-cost", fs.GasCostPerTx, &dst.GasCostPerTx)
	s.setStrings("chains", fs.Chains, &dst.Chains)
	s.setStrings("assets", fs.Assets, &dst.Assets)
	s.setBool("same-protocol", fs.SameProtocol, &dst.SameProtocol)
}

// LoadStrategy re-reads only the [strategy] section of path on top of base
// and returns validated optimizer parameters. It is used for hot reloads.
func LoadStrategy(path string, base StrategyConfig) (optimizer.Params, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return optimizer.Params{}, err
	}
	applyStrategy(newConfigSetter(nil), fc.Strategy, &base)
	return base.Params()
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
