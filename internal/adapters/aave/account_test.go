package aave

import (
	"context"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc/ethrpctest"
	"github.com/bft-labs/stableopt/internal/ratemath"
)

var (
	borrower = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	weth     = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
)

// base scales v to base-currency units.
func base(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(100_000_000))
}

func accountNode(t *testing.T, collateral, debt int64, hfWAD *big.Int) *ethrpctest.Server {
	t.Helper()
	srv := ethrpctest.NewServer()
	t.Cleanup(srv.Close)

	srv.Handle(DefaultAddressesProvider, addressesProviderABI, "getPool", func([]any) ([]any, error) {
		return []any{testPool}, nil
	})
	srv.Handle(DefaultAddressesProvider, addressesProviderABI, "getPriceOracle", func([]any) ([]any, error) {
		return []any{testOracle}, nil
	})
	srv.Handle(testPool, poolABI, "getUserAccountData", func([]any) ([]any, error) {
		return []any{
			base(collateral),
			base(debt),
			base(collateral*8/10 - debt),
			big.NewInt(8250),
			big.NewInt(8000),
			hfWAD,
		}, nil
	})
	srv.Handle(testOracle, oracleABI, "getAssetPrice", func(in []any) ([]any, error) {
		if asset, _ := in[0].(common.Address); asset != weth {
			return []any{new(big.Int)}, nil
		}
		return []any{base(2000)}, nil
	})
	return srv
}

func TestAccountReader(t *testing.T) {
	// 10000 collateral * 0.825 / 4000 debt.
	hf := new(big.Int).Mul(big.NewInt(20625), big.NewInt(100_000_000_000_000))
	srv := accountNode(t, 10_000, 4_000, hf)
	r := NewAccountReader(dial(t, srv.URL), common.Address{})
	ctx := context.Background()

	acc, err := r.Account(ctx, borrower)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acc.User != borrower {
		t.Errorf("User = %s", acc.User.Hex())
	}
	if acc.TotalCollateral != 10_000 || acc.TotalDebt != 4_000 || acc.AvailableBorrows != 4_000 {
		t.Errorf("amounts = %v/%v/%v", acc.TotalCollateral, acc.TotalDebt, acc.AvailableBorrows)
	}
	if acc.LiquidationThreshold != 0.825 || acc.LTV != 0.8 {
		t.Errorf("ratios = %v/%v, want 0.825/0.8", acc.LiquidationThreshold, acc.LTV)
	}
	if math.Abs(acc.HealthFactor-2.0625) > 1e-9 {
		t.Errorf("HealthFactor = %v, want 2.0625", acc.HealthFactor)
	}
	if math.Abs(ratemath.FromWAD(acc.HealthFactorWAD)-acc.HealthFactor) > 1e-9 {
		t.Errorf("HealthFactorWAD = %s disagrees with %v", acc.HealthFactorWAD, acc.HealthFactor)
	}
	if acc.BorrowPower != 4_000 {
		t.Errorf("BorrowPower = %v, want 4000", acc.BorrowPower)
	}
	if !acc.Healthy() {
		t.Error("Healthy() = false")
	}

	price, err := r.AssetPrice(ctx, weth)
	if err != nil {
		t.Fatalf("AssetPrice() error = %v", err)
	}
	if price != 2000 {
		t.Errorf("AssetPrice() = %v, want 2000", price)
	}

	liq, err := acc.LiquidationPrice(price)
	if err != nil {
		t.Fatalf("LiquidationPrice() error = %v", err)
	}
	// 5 units of collateral at 2000 against 4000 of debt.
	want := 4000 / (5 * 0.825)
	if math.Abs(liq-want) > 1e-6 {
		t.Errorf("LiquidationPrice() = %v, want %v", liq, want)
	}
	if _, err := acc.LiquidationPrice(0); err == nil {
		t.Error("LiquidationPrice(0) expected error")
	}
}

func TestAccountReader_NoDebt(t *testing.T) {
	srv := accountNode(t, 1_000, 0, ratemath.MaxUint256())
	r := NewAccountReader(dial(t, srv.URL), common.Address{})

	acc, err := r.Account(context.Background(), borrower)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if !math.IsInf(acc.HealthFactor, 1) {
		t.Errorf("HealthFactor = %v, want +Inf", acc.HealthFactor)
	}
	if acc.HealthFactorWAD.Cmp(ratemath.MaxUint256()) != 0 {
		t.Errorf("HealthFactorWAD = %s, want max uint256", acc.HealthFactorWAD)
	}
	if acc.BorrowPower != 800 {
		t.Errorf("BorrowPower = %v, want 800", acc.BorrowPower)
	}
}

func TestAccountReader_PoolUnavailable(t *testing.T) {
	srv := ethrpctest.NewServer()
	t.Cleanup(srv.Close)

	r := NewAccountReader(dial(t, srv.URL), common.Address{})
	if _, err := r.Account(context.Background(), borrower); err == nil {
		t.Fatal("Account() expected error without a provider")
	}
	if _, err := r.AssetPrice(context.Background(), weth); err == nil {
		t.Fatal("AssetPrice() expected error without a provider")
	}
}
