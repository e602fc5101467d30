package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stableopt/pkg/stableopt"
)

// cycle runs one optimization cycle without the API, publishing or
// touching the state directory a daemon may be using.
func (c *cli) cycle(ctx context.Context) (stableopt.Snapshot, error) {
	libCfg, err := c.libConfig()
	if err != nil {
		return stableopt.Snapshot{}, err
	}
	libCfg.ListenAddr = ""
	libCfg.ServiceURL = ""
	libCfg.Once = true

	sources, err := c.sources()
	if err != nil {
		return stableopt.Snapshot{}, err
	}
	agent, err := stableopt.New(libCfg,
		stableopt.WithLogger(c.logger()),
		stableopt.WithHTTPClient(c.httpClient()),
		stableopt.WithSources(sources...),
		stableopt.WithEphemeralState(),
	)
	if err != nil {
		return stableopt.Snapshot{}, err
	}
	return agent.Cycle(ctx)
}

func newRatesCommand(c *cli) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Fetch current rates once and print them with the best opportunities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			snap, err := c.cycle(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshot(os.Stdout, snap, top)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of opportunities to print")
	return cmd
}

func printSnapshot(out io.Writer, snap stableopt.Snapshot, top int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tCHAIN\tPROTOCOL\tASSET\tSUPPLY %\tBORROW %\tUTIL %")
	for _, r := range snap.Rates {
		borrow := "-"
		if r.HasBorrow() {
			borrow = fmt.Sprintf("%.2f", r.BorrowAPY)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%.1f\n",
			r.Market.Key, r.Market.Chain, r.Market.Protocol, r.Market.Asset,
			r.SupplyAPY, borrow, r.Utilization*100)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SUPPLY\tBORROW\tCHAIN\tSPREAD %")
	for i, o := range snap.Opportunities {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", o.Supply.Market.Key, o.Borrow.Market.Key, o.Chain(), o.Spread)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for source, msg := range snap.Errors {
		fmt.Fprintf(out, "\nsource %s failed: %s\n", source, msg)
	}
	if snap.Best == nil || snap.Strategy == nil {
		fmt.Fprintln(out, "\nno opportunity reaches the minimum spread")
		return nil
	}
	s := snap.Strategy
	fmt.Fprintf(out, "\nbest: supply %s, borrow %s: %d loops, %.2fx leverage, net APY %.2f%%\n",
		snap.Best.Supply.Market.Key, snap.Best.Borrow.Market.Key, s.Loops, s.Leverage, s.NetAPY)
	return nil
}
