package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/optimizer"
)

func newPlanCommand(c *cli) *cobra.Command {
	var failedStep int
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the loop plan for the best opportunity and how to unwind it",
		Long: "Print the supply/borrow/swap steps for the best current opportunity and the\n" +
			"steps that unwind it. Plans are advisory; nothing is submitted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			snap, err := c.cycle(cmd.Context())
			if err != nil {
				return err
			}
			if snap.Best == nil || snap.Strategy == nil {
				return errors.New("no opportunity reaches the minimum spread")
			}
			params, err := c.cfg.Params()
			if err != nil {
				return err
			}
			gas, err := optimizer.GasCost(snap.Strategy.Loops, params)
			if err != nil {
				return err
			}

			plan := optimizer.BuildPlan(*snap.Best, *snap.Strategy)
			out := os.Stdout
			fmt.Fprintf(out, "supply %s at %.2f%%, borrow %s at %.2f%%, spread %.2f%%\n",
				snap.Best.Supply.Market.Key, snap.Best.Supply.SupplyAPY,
				snap.Best.Borrow.Market.Key, snap.Best.Borrow.BorrowAPY, snap.Best.Spread)
			fmt.Fprintf(out, "%d loops, total collateral %.2f, leverage %.2fx, net APY %.2f%%\n",
				snap.Strategy.Loops, snap.Strategy.TotalCollateral, snap.Strategy.Leverage, snap.Strategy.NetAPY)
			fmt.Fprintf(out, "gas: %d tx per rebalance, %.2f USD/day, %.0f bps of capital per year\n\n",
				gas.TxPerRebalance, gas.DailyCost, gas.BpsOfCapital)

			fmt.Fprintln(out, "PLAN")
			if err := printActions(out, plan.Actions); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nUNWIND")
			if err := printActions(out, plan.Unwind); err != nil {
				return err
			}
			if failedStep > 0 {
				fmt.Fprintf(out, "\nRECOVERY AFTER STEP %d FAILS\n", failedStep)
				return printActions(out, plan.RecoverFrom(failedStep))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&failedStep, "failed-step", 0, "also print the recovery actions when this step fails")
	return cmd
}

func printActions(out io.Writer, actions []domain.Action) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tACTION\tMARKET\tASSET\tAMOUNT\tREVERSES")
	for _, a := range actions {
		asset := a.Asset
		if a.ToAsset != "" {
			asset += " -> " + a.ToAsset
		}
		reverses := ""
		if a.Reverses > 0 {
			reverses = fmt.Sprint(a.Reverses)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.4f\t%s\n", a.Step, a.Kind, a.Market, asset, a.Amount, reverses)
	}
	return w.Flush()
}
