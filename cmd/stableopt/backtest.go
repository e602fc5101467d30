package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stableopt/internal/adapters/llama"
	"github.com/bft-labs/stableopt/internal/adapters/sqlite"
	"github.com/bft-labs/stableopt/internal/backtest"
	"github.com/bft-labs/stableopt/internal/cliconfig"
	"github.com/bft-labs/stableopt/internal/domain"
)

func newBacktestCommand(c *cli) *cobra.Command {
	var (
		chainName string
		fromStore bool
		days      int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the looping strategy over historical rates",
		Long: "Replay the looping strategy over historical rates from DeFiLlama or, with\n" +
			"--from-store, from the local history database, and print per-market stats,\n" +
			"the strategy summary and the compounded balance.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			var chain domain.Chain
			if chainName != "" {
				var err error
				if chain, err = domain.ParseChain(chainName); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			var (
				series *backtest.Series
				err    error
			)
			if fromStore {
				series, err = c.storedSeries(ctx, days)
			} else {
				series, err = c.llamaSeries(ctx)
			}
			if err != nil {
				return err
			}
			if series.Len() == 0 {
				return errors.New("no historical rates")
			}

			params, err := c.cfg.Params()
			if err != nil {
				return err
			}
			res, err := backtest.Run(series, backtest.Config{
				LTV:               params.LTV,
				InitialCollateral: params.InitialCapital,
				StopCondition:     params.StopCondition,
				Chain:             chain,
			})
			if err != nil {
				return err
			}
			summary, err := backtest.Summarize(res.Rows, res.Loops, params)
			if err != nil {
				return err
			}
			balances := backtest.Compound(res.Rows, params.InitialCapital)

			out := os.Stdout
			stats := backtest.AllStats(series.Filter(chain))
			if err := printStats(out, stats); err != nil {
				return err
			}
			if err := printCategories(out, backtest.CategoryAverages(stats)); err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%d observations, %d loops, %.2fx leverage\n", len(res.Rows), res.Loops, res.Leverage)
			fmt.Fprintf(out, "mean net APY %.2f%%\n", summary.MeanAPY)
			fmt.Fprintf(out, "gas: %d tx per rebalance, %.2f USD/year (%.0f bps of capital, %.2f bps of $1M)\n",
				summary.Gas.TxPerRebalance, summary.Gas.AnnualCost, summary.Gas.BpsOfCapital, summary.Gas.BpsPerMillion)
			if len(balances) > 0 {
				last := balances[len(balances)-1]
				fmt.Fprintf(out, "balance %.2f -> %.2f by %s\n", params.InitialCapital, last.Balance, last.Time.Format(time.DateOnly))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chainName, "chain", string(domain.ChainArbitrum), "chain to backtest (empty for all)")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read history from the local database instead of DeFiLlama")
	cmd.Flags().IntVar(&days, "days", 0, "with --from-store, only use the last N days (0 for all)")
	return cmd
}

// llamaSeries downloads the history of every DeFiLlama pool in the registry.
// Pools that fail are skipped.
func (c *cli) llamaSeries(ctx context.Context) (*backtest.Series, error) {
	reg, err := cliconfig.BuildRegistry(c.cfg)
	if err != nil {
		return nil, err
	}
	pools := reg.Llama
	if len(pools) == 0 {
		pools = llama.DefaultPools()
	}
	src := llama.NewSource(llama.NewClient(c.cfg.LlamaURL, c.httpClient()), pools, c.logger())
	series, err := src.History(ctx)
	if err != nil {
		if series == nil || series.Len() == 0 {
			return nil, err
		}
		c.log.Warn().Err(err).Msg("some pools failed")
	}
	return series, nil
}

func (c *cli) storedSeries(ctx context.Context, days int) (*backtest.Series, error) {
	store, err := sqlite.Open(c.cfg.HistoryPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var from time.Time
	if days > 0 {
		from = time.Now().AddDate(0, 0, -days)
	}
	return store.Series(ctx, nil, from, time.Time{})
}

func printStats(out io.Writer, stats []backtest.Stat) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tMETRIC\tCHAIN\tN\tLAST\tAVG\tMEDIAN\tVOL\tMIN\tMAX\tP10\tP90")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			s.Pool, s.Metric, s.Chain, s.Count, s.Last, s.Average, s.Median, s.Volatility, s.Min, s.Max, s.P10, s.P90)
	}
	return w.Flush()
}

func printCategories(out io.Writer, rows []backtest.CategoryRow) error {
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tAVG\tMEDIAN\tVOL\tMIN\tMAX\tP10\tP90")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			r.Category, r.Average, r.Median, r.Volatility, r.Min, r.Max, r.P10, r.P90)
	}
	return w.Flush()
}
