package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (STABLEOPT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", os.Getenv("STABLEOPT_STATE_DIR"), &cfg.StateDir)
	s.setString("history-path", os.Getenv("STABLEOPT_HISTORY_PATH"), &cfg.HistoryPath)
	s.setString("listen", os.Getenv("STABLEOPT_LISTEN"), &cfg.ListenAddr)
	s.setString("service-url", os.Getenv("STABLEOPT_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("STABLEOPT_AUTH_KEY"), &cfg.AuthKey)
	s.setString("llama-url", os.Getenv("STABLEOPT_LLAMA_URL"), &cfg.LlamaURL)
	s.setString("redis-addr", os.Getenv("STABLEOPT_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", os.Getenv("STABLEOPT_REDIS_PASSWORD"), &cfg.RedisPassword)

	if err := s.setDuration("poll", os.Getenv("STABLEOPT_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("STABLEOPT_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cache-ttl", os.Getenv("STABLEOPT_CACHE_TTL"), &cfg.CacheTTL); err != nil {
		return err
	}
	if err := s.setDuration("retention", os.Getenv("STABLEOPT_HISTORY_RETENTION"), &cfg.HistoryRetention); err != nil {
		return err
	}

	if err := s.setFloatFromString("rpc-rate", os.Getenv("STABLEOPT_RPC_RATE_LIMIT"), &cfg.RPCRateLimit); err != nil {
		return err
	}
	if err := s.setIntFromString("redis-db", os.Getenv("STABLEOPT_REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}

	st := &cfg.Strategy
	if err := s.setFloatFromString("ltv", os.Getenv("STABLEOPT_LTV"), &st.LTV); err != nil {
		return err
	}
	if err := s.setFloatFromString("stop", os.Getenv("STABLEOPT_STOP_CONDITION"), &st.StopCondition); err != nil {
		return err
	}
	if err := s.setFloatFromString("min-spread", os.Getenv("STABLEOPT_MIN_SPREAD"), &st.MinSpread); err != nil {
		return err
	}
	if err := s.setFloatFromString("capital", os.Getenv("STABLEOPT_INITIAL_CAPITAL"), &st.InitialCapital); err != nil {
		return err
	}
	if err := s.setFloatFromString("rebalance-hours", os.Getenv("STABLEOPT_REBALANCE_HOURS"), &st.RebalanceHours); err != nil {
		return err
	}
	if err := s.setFloatFromString("gas-cost", os.Getenv("STABLEOPT_GAS_COST_PER_TX"), &st.GasCostPerTx); err != nil {
		return err
	}
	s.setStringsFromString("chains", os.Getenv("STABLEOPT_CHAINS"), &st.Chains)
	s.setStringsFromString("assets", os.Getenv("STABLEOPT_ASSETS"), &st.Assets)
	s.setBoolFromString("same-protocol", os.Getenv("STABLEOPT_SAME_PROTOCOL"), &st.SameProtocol)

	s.setBoolFromString("once", os.Getenv("STABLEOPT_ONCE"), &cfg.Once)

	return nil
}
