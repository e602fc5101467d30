package aave

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/ratemath"
)

// BaseCurrencyDecimals is the precision of Aave v3 base-currency amounts
// and oracle prices (USD with 8 decimals).
const BaseCurrencyDecimals = 8

const bpsDecimals = 4

// Account is a borrower's Aave v3 position. Amounts are in the base
// currency, ratios are fractions.
type Account struct {
	User                 common.Address
	TotalCollateral      float64
	TotalDebt            float64
	AvailableBorrows     float64
	LiquidationThreshold float64
	LTV                  float64
	// HealthFactor is collateral*threshold/debt, +Inf without debt.
	HealthFactor float64
	// HealthFactorWAD is the pool's own value, 2^256-1 without debt.
	HealthFactorWAD *big.Int
	// BorrowPower is collateral*ltv minus debt, never negative.
	BorrowPower float64
}

// Healthy reports whether the account is above the liquidation threshold.
func (a Account) Healthy() bool { return a.HealthFactor >= 1 }

// LiquidationPrice is the collateral price at which the account becomes
// liquidatable, assuming all collateral is one asset currently priced at
// price.
func (a Account) LiquidationPrice(price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %v", price)
	}
	return ratemath.LiquidationPrice(price, a.TotalCollateral/price, a.TotalDebt/price, a.LiquidationThreshold)
}

// AccountReader reads borrower accounts and oracle prices from an Aave v3
// market.
type AccountReader struct {
	rpc      ethrpc.Caller
	provider ethrpc.Contract
}

// NewAccountReader creates a reader. A zero provider selects
// DefaultAddressesProvider.
func NewAccountReader(rpc ethrpc.Caller, provider common.Address) *AccountReader {
	if provider == (common.Address{}) {
		provider = DefaultAddressesProvider
	}
	return &AccountReader{rpc: rpc, provider: ethrpc.NewContract(provider, addressesProviderABI)}
}

// Account reads getUserAccountData for user at the latest block.
func (r *AccountReader) Account(ctx context.Context, user common.Address) (Account, error) {
	pool, err := resolve(ctx, r.rpc, r.provider, "getPool", poolABI)
	if err != nil {
		return Account{}, err
	}
	out, err := pool.Call(ctx, r.rpc, "getUserAccountData", user)
	if err != nil {
		return Account{}, err
	}

	values := make([]*big.Int, outHealthFactor+1)
	for i := range values {
		if values[i], err = ethrpc.Output[*big.Int](out, i); err != nil {
			return Account{}, fmt.Errorf("getUserAccountData: %w", err)
		}
	}

	acc := Account{
		User:                 user,
		TotalCollateral:      ratemath.FromBase(values[outTotalCollateral], BaseCurrencyDecimals),
		TotalDebt:            ratemath.FromBase(values[outTotalDebt], BaseCurrencyDecimals),
		AvailableBorrows:     ratemath.FromBase(values[outAvailableBorrows], BaseCurrencyDecimals),
		LiquidationThreshold: ratemath.FromBase(values[outLiquidationThreshold], bpsDecimals),
		LTV:                  ratemath.FromBase(values[outLTV], bpsDecimals),
		HealthFactorWAD:      values[outHealthFactor],
	}
	acc.HealthFactor = ratemath.HealthFactor(acc.TotalCollateral, acc.TotalDebt, acc.LiquidationThreshold)
	acc.BorrowPower = ratemath.BorrowPower(acc.TotalCollateral, acc.LTV, acc.TotalDebt)
	return acc, nil
}

// AssetPrice returns the oracle price of asset in the base currency.
func (r *AccountReader) AssetPrice(ctx context.Context, asset common.Address) (float64, error) {
	oracle, err := resolve(ctx, r.rpc, r.provider, "getPriceOracle", oracleABI)
	if err != nil {
		return 0, err
	}
	out, err := oracle.Call(ctx, r.rpc, "getAssetPrice", asset)
	if err != nil {
		return 0, err
	}
	price, err := ethrpc.Output[*big.Int](out, 0)
	if err != nil {
		return 0, fmt.Errorf("getAssetPrice: %w", err)
	}
	return ratemath.FromBase(price, BaseCurrencyDecimals), nil
}
