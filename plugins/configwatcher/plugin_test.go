package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bft-labs/stableopt/pkg/stableopt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeConfig replaces path atomically so the watcher never sees a
// truncated file.
func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func startPlugin(t *testing.T, path string) (*Plugin, chan stableopt.Params) {
	t.Helper()
	updates := make(chan stableopt.Params, 4)

	p := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond, Base: DefaultConfig(path).Base})
	err := p.Initialize(context.Background(), stableopt.PluginConfig{
		Reconfigure: func(params stableopt.Params) error {
			updates <- params
			return nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, updates
}

func TestPlugin_ReloadsStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[strategy]\nltv = 0.9\n")
	_, updates := startPlugin(t, path)

	writeConfig(t, path, "[strategy]\nltv = 0.5\nmin_spread = 1.5\nchains = [\"arbitrum\"]\n")

	select {
	case params := <-updates:
		assert.Equal(t, 0.5, params.LTV)
		assert.Equal(t, 1.5, params.MinSpread)
		assert.Len(t, params.Chains, 1)
		assert.Equal(t, DefaultConfig(path).Base.StopCondition, params.StopCondition)
	case <-time.After(5 * time.Second):
		t.Fatal("strategy was not reloaded")
	}
}

func TestPlugin_IgnoresInvalidStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[strategy]\nltv = 0.9\n")
	_, updates := startPlugin(t, path)

	writeConfig(t, path, "[strategy]\nltv = 1.5\n")

	select {
	case params := <-updates:
		t.Fatalf("unexpected reload with %+v", params)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[strategy]\nltv = 0.9\n")
	_, updates := startPlugin(t, path)

	writeConfig(t, filepath.Join(dir, "other.toml"), "[strategy]\nltv = 0.5\n")

	select {
	case params := <-updates:
		t.Fatalf("unexpected reload with %+v", params)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	p := New(Config{})
	require.NoError(t, p.Initialize(context.Background(), stableopt.PluginConfig{}))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, "configwatcher", p.Name())
}

func TestPlugin_MissingDirectory(t *testing.T) {
	p := New(DefaultConfig(filepath.Join(t.TempDir(), "missing", "config.toml")))
	err := p.Initialize(context.Background(), stableopt.PluginConfig{
		Reconfigure: func(stableopt.Params) error { return nil },
	})
	assert.Error(t, err)
}
