package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stableopt/internal/cliconfig"
	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
	"github.com/bft-labs/stableopt/pkg/stableopt"
)

func newTestCLI() *cli {
	return &cli{cfg: cliconfig.DefaultConfig(), log: zerolog.Nop()}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
state_dir = "`+filepath.Join(dir, "state")+`"
poll_interval = "10m"

[strategy]
ltv = 0.7
min_spread = 1.0
`), 0o644))
	t.Setenv("STABLEOPT_MIN_SPREAD", "2.5")

	c := newTestCLI()
	root := newRootCommand(c)
	require.NoError(t, root.ParseFlags([]string{"--config", path, "--ltv", "0.8"}))
	require.NoError(t, c.load(root))

	assert.Equal(t, 0.8, c.cfg.Strategy.LTV, "flag wins over file")
	assert.Equal(t, 2.5, c.cfg.Strategy.MinSpread, "env wins over file")
	assert.Equal(t, "10m0s", c.cfg.PollInterval.String())
	assert.DirExists(t, c.cfg.StateDir)
	assert.Equal(t, filepath.Join(dir, "state", "history.db"), c.cfg.HistoryPath)
}

// llamaServer serves the same two-point history for every pool, or fails
// every request when status is not 200.
func llamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "upstream unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"timestamp":"2024-01-01T00:00:00Z","apyBase":4.5,"apyBaseBorrow":3.1,"totalSupplyUsd":1000000,"totalBorrowUsd":600000},
			{"timestamp":"2024-01-02T00:00:00Z","apyBase":5.2,"apyBaseBorrow":3.4,"totalSupplyUsd":1000000,"totalBorrowUsd":700000}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command with args against an isolated state
// directory and no config file.
func runCLI(t *testing.T, stateDir string, args ...string) error {
	t.Helper()
	c := newTestCLI()
	root := newRootCommand(c)
	base := []string{
		"--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--state-dir", stateDir,
		"--history-path", filepath.Join(t.TempDir(), "history.db"),
	}
	root.SetArgs(append(base, args...))
	root.SetOut(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestDaemon_OnceExitStatus(t *testing.T) {
	t.Run("failed cycle", func(t *testing.T) {
		srv := llamaServer(t, http.StatusInternalServerError)
		err := runCLI(t, t.TempDir(), "--llama-url", srv.URL, "--listen", "127.0.0.1:0", "--once")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSourcesUnavailable)
	})

	t.Run("successful cycle", func(t *testing.T) {
		srv := llamaServer(t, http.StatusOK)
		state := t.TempDir()
		require.NoError(t, runCLI(t, state, "--llama-url", srv.URL, "--listen", "127.0.0.1:0", "--once"))
		assert.FileExists(t, filepath.Join(state, "snapshot.json"))
	})
}

func TestRates_LeavesStateDirUntouched(t *testing.T) {
	srv := llamaServer(t, http.StatusOK)
	state := t.TempDir()

	require.NoError(t, runCLI(t, state, "--llama-url", srv.URL, "rates", "--top", "1"))

	assert.NoFileExists(t, filepath.Join(state, "snapshot.json"))
	assert.NoFileExists(t, filepath.Join(state, "status.json"))
}

func TestPrintSnapshot(t *testing.T) {
	supply := domain.Rate{
		Market:    domain.Market{Key: "aave_arb_usdc", Protocol: domain.ProtocolAave, Chain: domain.ChainArbitrum, Asset: "USDC"},
		SupplyAPY: 8, BorrowAPY: 5,
	}
	borrow := domain.Rate{
		Market:    domain.Market{Key: "morpho_arb_usdc", Protocol: domain.ProtocolMorpho, Chain: domain.ChainArbitrum, Asset: "USDC"},
		SupplyAPY: 4, BorrowAPY: 3,
	}
	p := optimizer.DefaultParams()
	snap, err := optimizer.Evaluate([]domain.Rate{supply, borrow}, p, supply.ObservedAt)
	require.NoError(t, err)
	snap.Errors = map[string]string{"aave-base": "rpc down"}

	var buf bytes.Buffer
	require.NoError(t, printSnapshot(&buf, snap, 1))
	out := buf.String()

	assert.Contains(t, out, "aave_arb_usdc")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "source aave-base failed: rpc down")
	assert.Contains(t, out, "best: supply aave_arb_usdc, borrow morpho_arb_usdc")
}

func TestPrintSnapshot_NoOpportunity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSnapshot(&buf, stableopt.Snapshot{}, 0))
	assert.Contains(t, buf.String(), "no opportunity reaches the minimum spread")
}

func TestPrintActions(t *testing.T) {
	actions := []domain.Action{
		{Step: 1, Kind: domain.ActionSupply, Market: "aave_arb_usdc", Asset: "USDC", Amount: 100},
		{Step: 2, Kind: domain.ActionSwap, Market: "aave_arb_usdc", Asset: "USDT", ToAsset: "USDC", Amount: 90, Reverses: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, printActions(&buf, actions))
	assert.Contains(t, buf.String(), "USDT -> USDC")
	assert.Contains(t, buf.String(), "100.0000")
}
