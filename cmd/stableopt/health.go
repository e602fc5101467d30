package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/bft-labs/stableopt/internal/adapters/aave"
	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/adapters/morpho"
	"github.com/bft-labs/stableopt/internal/domain"
)

type healthFlags struct {
	protocol string
	chain    string
	marketID string
	user     string
	asset    string
}

func newHealthCommand(c *cli) *cobra.Command {
	var f healthFlags
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the health of an Aave v3 or Morpho Blue borrow position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			protocol := strings.ToLower(f.protocol)
			if protocol != "aave" && protocol != "morpho" {
				return fmt.Errorf("--protocol must be aave or morpho, got %q", f.protocol)
			}
			if f.chain == "" {
				f.chain = string(domain.ChainEthereum)
				if protocol == "aave" {
					f.chain = string(domain.ChainArbitrum)
				}
			}
			chain, err := domain.ParseChain(f.chain)
			if err != nil {
				return err
			}
			user, err := ethrpc.ParseAddress(f.user)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}

			rpcURL := c.cfg.RPCURL(chain)
			if rpcURL == "" {
				return fmt.Errorf("no rpc_url configured for chain %s", chain)
			}
			rpc, err := ethrpc.Dial(rpcURL,
				ethrpc.WithTimeout(c.cfg.HTTPTimeout),
				ethrpc.WithRateLimit(c.cfg.RPCRateLimit, ethrpc.DefaultBurst),
			)
			if err != nil {
				return err
			}
			defer rpc.Close()

			out := cmd.OutOrStdout()
			if protocol == "aave" {
				return aaveHealth(cmd.Context(), out, rpc, chain, user, f.asset)
			}
			return morphoHealth(cmd.Context(), out, rpc, chain, user, f.marketID)
		},
	}
	cmd.Flags().StringVar(&f.protocol, "protocol", "morpho", "lending protocol (aave or morpho)")
	cmd.Flags().StringVar(&f.chain, "chain", "", "chain of the position (default ethereum for morpho, arbitrum for aave)")
	cmd.Flags().StringVar(&f.marketID, "market-id", "", "Morpho Blue market ID (bytes32)")
	cmd.Flags().StringVar(&f.user, "user", "", "borrower address")
	cmd.Flags().StringVar(&f.asset, "asset", "", "Aave collateral reserve symbol or address for the liquidation price")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func formatHealth(hf float64) string {
	if math.IsInf(hf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", hf)
}

func morphoHealth(ctx context.Context, w io.Writer, rpc morpho.Caller, chain domain.Chain, user common.Address, marketID string) error {
	if marketID == "" {
		return errors.New("--market-id is required for morpho")
	}
	address, ok := morpho.DefaultAddresses()[chain]
	if !ok {
		return fmt.Errorf("morpho blue is not deployed on %s", chain)
	}
	id, err := ethrpc.ParseBytes32(marketID)
	if err != nil {
		return fmt.Errorf("--market-id: %w", err)
	}

	pos, err := morpho.NewSource(chain, rpc, address, nil, nil).Position(ctx, id, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "borrowed:      %s\nmax borrow:    %s\nhealth factor: %s\nhealthy:       %v\n",
		pos.BorrowAssets, pos.MaxBorrow, formatHealth(pos.HealthFactor), pos.Healthy)
	return nil
}

func aaveHealth(ctx context.Context, w io.Writer, rpc ethrpc.Caller, chain domain.Chain, user common.Address, asset string) error {
	reader := aave.NewAccountReader(rpc, aave.DefaultAddressesProvider)
	acc, err := reader.Account(ctx, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "collateral:    %.2f\nborrowed:      %.2f\navailable:     %.2f\nborrow power:  %.2f\nltv:           %.4f\nthreshold:     %.4f\nhealth factor: %s\nhealthy:       %v\n",
		acc.TotalCollateral, acc.TotalDebt, acc.AvailableBorrows, acc.BorrowPower,
		acc.LTV, acc.LiquidationThreshold, formatHealth(acc.HealthFactor), acc.Healthy())
	if asset == "" {
		return nil
	}

	addr, err := reserveAddress(chain, asset)
	if err != nil {
		return err
	}
	price, err := reader.AssetPrice(ctx, addr)
	if err != nil {
		return err
	}
	liq, err := acc.LiquidationPrice(price)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "price:         %.4f\nliq. price:    %.4f\n", price, liq)
	return nil
}

// reserveAddress resolves a built-in reserve symbol or a raw address.
func reserveAddress(chain domain.Chain, asset string) (common.Address, error) {
	for _, r := range aave.DefaultReserves(chain) {
		if strings.EqualFold(r.Asset, asset) {
			return ethrpc.ParseAddress(r.Address)
		}
	}
	addr, err := ethrpc.ParseAddress(asset)
	if err != nil {
		return addr, fmt.Errorf("--asset: no %s reserve %q", chain, asset)
	}
	return addr, nil
}
