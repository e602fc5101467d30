package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/stableopt/internal/adapters/cache"
	"github.com/bft-labs/stableopt/internal/adapters/sqlite"
	"github.com/bft-labs/stableopt/internal/cliconfig"
	"github.com/bft-labs/stableopt/pkg/log"
	"github.com/bft-labs/stableopt/pkg/stableopt"
	"github.com/bft-labs/stableopt/plugins/configwatcher"
	"github.com/bft-labs/stableopt/plugins/historyretention"
)

const helpDescription = `
Track stablecoin lending rates across Aave V3, Morpho Blue and DeFiLlama
and size the best leveraged supply/borrow loop.

Highlights:
  - Polls every configured market concurrently; a failing source never blocks the rest.
  - Ranks every supply/borrow pair per chain and sizes a looping strategy with gas costs.
  - Serves rates, opportunities, strategy and history over HTTP with Prometheus metrics.
  - Plans are advisory: nothing is signed or submitted.
`

var longHelp = "stableopt: stablecoin lending optimizer\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  stableopt --listen :8080 --poll 5m
  stableopt --config $HOME/.stableopt/config.toml --once
  stableopt rates --chains arbitrum,base
  stableopt backtest --chain arbitrum --ltv 0.85 --capital 10000
  stableopt plan --ltv 0.9 --stop 0.8
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the configuration shared by every command.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

// load applies the config file, then STABLEOPT_* variables, under the
// flags the user set explicitly, and validates the result.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.configFile()

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}
	return os.MkdirAll(c.cfg.StateDir, 0o755)
}

func (c *cli) configFile() string {
	if c.cfgPath != "" {
		return c.cfgPath
	}
	return cliconfig.DefaultConfigPath()
}

func (c *cli) logger() stableopt.Logger {
	return log.NewZerologAdapterWithLogger(c.log)
}

func (c *cli) httpClient() *http.Client {
	return &http.Client{Timeout: c.cfg.HTTPTimeout}
}

// sources builds one rate source per provider and chain.
func (c *cli) sources() ([]stableopt.RateSource, error) {
	reg, err := cliconfig.BuildRegistry(c.cfg)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("markets", reg.Len()).Msg("market registry")
	return cliconfig.BuildSources(c.cfg, reg, c.httpClient(), c.logger())
}

// libConfig converts the CLI config for the embeddable agent.
func (c *cli) libConfig() (stableopt.Config, error) {
	params, err := c.cfg.Params()
	if err != nil {
		return stableopt.Config{}, err
	}
	return stableopt.Config{
		StateDir:     c.cfg.StateDir,
		PollInterval: c.cfg.PollInterval,
		HTTPTimeout:  c.cfg.HTTPTimeout,
		CacheTTL:     c.cfg.CacheTTL,
		ListenAddr:   c.cfg.ListenAddr,
		ServiceURL:   c.cfg.ServiceURL,
		AuthKey:      c.cfg.AuthKey,
		Once:         c.cfg.Once,
		Params:       params,
	}, nil
}

func (c *cli) runDaemon(cmd *cobra.Command, _ []string) error {
	if err := c.load(cmd); err != nil {
		return err
	}
	c.log.Info().Interface("config", c.cfg.Masked()).Msg("configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	libCfg, err := c.libConfig()
	if err != nil {
		return err
	}
	sources, err := c.sources()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.HistoryPath), 0o755); err != nil {
		return err
	}
	history, err := sqlite.Open(c.cfg.HistoryPath, sqlite.DefaultConfig())
	if err != nil {
		return err
	}
	defer history.Close()

	opts := []stableopt.Option{
		stableopt.WithLogger(c.logger()),
		stableopt.WithHTTPClient(c.httpClient()),
		stableopt.WithSources(sources...),
		stableopt.WithHistoryStore(history),
	}

	if c.cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.cfg.RedisAddr,
			Password: c.cfg.RedisPassword,
			DB:       c.cfg.RedisDB,
			Prefix:   "stableopt:",
		}, c.logger())
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
		opts = append(opts, stableopt.WithCache(redisCache))
	}

	if cfgFile := c.configFile(); cliconfig.FileExists(cfgFile) {
		watch := configwatcher.DefaultConfig(cfgFile)
		watch.Base = c.cfg.Strategy
		opts = append(opts, configwatcher.WithConfigWatcher(watch))
	}
	if c.cfg.HistoryRetention > 0 {
		retention := historyretention.DefaultConfig()
		retention.MaxAge = c.cfg.HistoryRetention
		opts = append(opts, historyretention.WithHistoryRetention(retention))
	}

	agent, err := stableopt.New(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	select {
	case <-sigCh:
		c.log.Info().Msg("received signal, stopping...")
	case <-agent.Done():
	}

	// Stop reports the failed once-mode cycle or the crash that ended the
	// run, so the process exits non-zero for both.
	if err := agent.Stop(); err != nil {
		return fmt.Errorf("agent %s: %w", strings.ToLower(agent.Status().String()), err)
	}
	return nil
}

func newRootCommand(c *cli) *cobra.Command {
	cfg := &c.cfg
	root := &cobra.Command{
		Use:           "stableopt",
		Short:         "Stablecoin lending rate optimizer",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runDaemon,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.stableopt/config.toml)")
	pf.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for snapshot.json and status.json (default: $HOME/.stableopt)")
	pf.StringVar(&cfg.HistoryPath, "history-path", cfg.HistoryPath, "SQLite history database (default: <state-dir>/history.db)")
	pf.StringVar(&cfg.LlamaURL, "llama-url", cfg.LlamaURL, "DeFiLlama yields API base URL")
	pf.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	pf.Float64Var(&cfg.RPCRateLimit, "rpc-rate", cfg.RPCRateLimit, "JSON-RPC requests per second per chain (0 disables throttling)")

	pf.Float64Var(&cfg.Strategy.LTV, "ltv", cfg.Strategy.LTV, "loan-to-value per loop, in (0,1)")
	pf.Float64Var(&cfg.Strategy.StopCondition, "stop", cfg.Strategy.StopCondition, "stop looping once the next borrow falls below this fraction")
	pf.Float64Var(&cfg.Strategy.MinSpread, "min-spread", cfg.Strategy.MinSpread, "minimum supply-minus-borrow spread in percent")
	pf.Float64Var(&cfg.Strategy.InitialCapital, "capital", cfg.Strategy.InitialCapital, "initial capital in USD")
	pf.Float64Var(&cfg.Strategy.RebalanceHours, "rebalance-hours", cfg.Strategy.RebalanceHours, "hours between rebalances")
	pf.Float64Var(&cfg.Strategy.GasCostPerTx, "gas-cost", cfg.Strategy.GasCostPerTx, "gas cost per transaction in USD")
	pf.StringSliceVar(&cfg.Strategy.Chains, "chains", cfg.Strategy.Chains, "chains to consider (default: all)")
	pf.StringSliceVar(&cfg.Strategy.Assets, "assets", cfg.Strategy.Assets, "assets to consider (default: all)")
	pf.BoolVar(&cfg.Strategy.SameProtocol, "same-protocol", cfg.Strategy.SameProtocol, "only pair markets of one protocol")

	f := root.Flags()
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP API listen address (empty disables the API)")
	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "publish every snapshot to this URL")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for the publish endpoint")
	f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "interval between optimization cycles")
	f.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "snapshot cache TTL (default: twice the poll interval)")
	f.DurationVar(&cfg.HistoryRetention, "retention", cfg.HistoryRetention, "how long rate history is kept (0 keeps everything)")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the snapshot cache (default: in-memory)")
	f.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	f.BoolVar(&cfg.Once, "once", cfg.Once, "run a single cycle and exit")

	root.AddCommand(
		newRatesCommand(c),
		newPlanCommand(c),
		newBacktestCommand(c),
		newHealthCommand(c),
	)
	return root
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger()}
	if err := newRootCommand(c).Execute(); err != nil {
		c.log.Error().Err(err).Msg("stableopt")
		os.Exit(1)
	}
}
