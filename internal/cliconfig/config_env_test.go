package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"STABLEOPT_STATE_DIR":      "/env/state",
				"STABLEOPT_POLL_INTERVAL":  "10m",
				"STABLEOPT_RPC_RATE_LIMIT": "2.5",
				"STABLEOPT_REDIS_DB":       "3",
				"STABLEOPT_ONCE":           "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				StateDir:     "/env/state",
				PollInterval: 10 * time.Minute,
				RPCRateLimit: 2.5,
				RedisDB:      3,
				Once:         true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"STABLEOPT_STATE_DIR": "/env/state",
				"STABLEOPT_LISTEN":    ":9090",
			},
			changed: map[string]bool{"state-dir": true},
			initial: Config{StateDir: "/flag/state"},
			expected: Config{
				StateDir:   "/flag/state",
				ListenAddr: ":9090",
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"STABLEOPT_POLL_INTERVAL": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"STABLEOPT_REDIS_DB": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"STABLEOPT_LTV": "not-a-float"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "zero values are applied",
			envVars: map[string]string{
				"STABLEOPT_MIN_SPREAD":     "0",
				"STABLEOPT_RPC_RATE_LIMIT": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{RPCRateLimit: DefaultRPCRateLimit, Strategy: StrategyConfig{MinSpread: 0.5}},
			expected: Config{},
		},
		{
			name: "handles bool '1' as true",
			envVars: map[string]string{
				"STABLEOPT_SAME_PROTOCOL": "1",
			},
			changed:  map[string]bool{},
			expected: Config{Strategy: StrategyConfig{SameProtocol: true}},
		},
		{
			name: "strategy values and lists",
			envVars: map[string]string{
				"STABLEOPT_LTV":             "0.75",
				"STABLEOPT_STOP_CONDITION":  "0.5",
				"STABLEOPT_MIN_SPREAD":      "0.3",
				"STABLEOPT_INITIAL_CAPITAL": "1000",
				"STABLEOPT_CHAINS":          "arb, pol",
				"STABLEOPT_ASSETS":          "USDC,USDT,",
			},
			changed: map[string]bool{},
			expected: Config{Strategy: StrategyConfig{
				LTV:            0.75,
				StopCondition:  0.5,
				MinSpread:      0.3,
				InitialCapital: 1000,
				Chains:         []string{"arb", "pol"},
				Assets:         []string{"USDC", "USDT"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}
			if tt.wantErr {
				return
			}

			if cfg.StateDir != tt.expected.StateDir {
				t.Errorf("StateDir = %v, want %v", cfg.StateDir, tt.expected.StateDir)
			}
			if cfg.ListenAddr != tt.expected.ListenAddr {
				t.Errorf("ListenAddr = %v, want %v", cfg.ListenAddr, tt.expected.ListenAddr)
			}
			if cfg.PollInterval != tt.expected.PollInterval {
				t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, tt.expected.PollInterval)
			}
			if cfg.RPCRateLimit != tt.expected.RPCRateLimit {
				t.Errorf("RPCRateLimit = %v, want %v", cfg.RPCRateLimit, tt.expected.RPCRateLimit)
			}
			if cfg.RedisDB != tt.expected.RedisDB {
				t.Errorf("RedisDB = %v, want %v", cfg.RedisDB, tt.expected.RedisDB)
			}
			if cfg.Once != tt.expected.Once {
				t.Errorf("Once = %v, want %v", cfg.Once, tt.expected.Once)
			}

			got, want := cfg.Strategy, tt.expected.Strategy
			if got.LTV != want.LTV || got.StopCondition != want.StopCondition ||
				got.MinSpread != want.MinSpread || got.InitialCapital != want.InitialCapital ||
				got.SameProtocol != want.SameProtocol {
				t.Errorf("Strategy = %+v, want %+v", got, want)
			}
			if len(got.Chains) != len(want.Chains) || len(got.Assets) != len(want.Assets) {
				t.Errorf("Strategy lists = %v %v, want %v %v", got.Chains, got.Assets, want.Chains, want.Assets)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		StateDir:     "/file/state",
		ListenAddr:   ":7000",
		PollInterval: "1m",
		Once:         &trueVal,
		Strategy:     FileStrategy{LTV: ptr(0.6)},
	}

	t.Setenv("STABLEOPT_STATE_DIR", "/env/state")
	t.Setenv("STABLEOPT_LISTEN", ":8000")
	t.Setenv("STABLEOPT_LTV", "0.7")

	// Simulate CLI flags
	changed := map[string]bool{
		"state-dir": true,
	}

	cfg := DefaultConfig()
	cfg.StateDir = "/cli/state"

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.StateDir != "/cli/state" {
		t.Errorf("StateDir = %v, want /cli/state (CLI should win)", cfg.StateDir)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %v, want :8000 (env should override file)", cfg.ListenAddr)
	}
	if cfg.Strategy.LTV != 0.7 {
		t.Errorf("LTV = %v, want 0.7 (env should override file)", cfg.Strategy.LTV)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want 1m (file should set)", cfg.PollInterval)
	}
	if !cfg.Once {
		t.Error("Once = false, want true (file should set)")
	}
}
