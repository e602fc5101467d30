package ratemath

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stableopt/internal/domain"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad int " + s)
	}
	return v
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		x, y, d  int64
		down, up int64
	}{
		{"exact", 10, 4, 5, 8, 8},
		{"remainder", 10, 3, 4, 7, 8},
		{"zero numerator", 0, 3, 4, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			down, err := MulDivDown(big.NewInt(tt.x), big.NewInt(tt.y), big.NewInt(tt.d))
			require.NoError(t, err)
			assert.Equal(t, tt.down, down.Int64())

			up, err := MulDivUp(big.NewInt(tt.x), big.NewInt(tt.y), big.NewInt(tt.d))
			require.NoError(t, err)
			assert.Equal(t, tt.up, up.Int64())
		})
	}

	_, err := MulDivDown(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
	_, err = WDivUp(big.NewInt(1), new(big.Int))
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}

func TestWTaylorCompounded(t *testing.T) {
	got := WTaylorCompounded(big.NewInt(1_000_000_000), SecondsPerYear)
	assert.Equal(t, "32038486841419776", got.String())

	assert.Zero(t, WTaylorCompounded(new(big.Int), SecondsPerYear).Sign())
}

func TestShareConversions(t *testing.T) {
	assert.Equal(t, int64(636363), ToSharesDown(big.NewInt(7), big.NewInt(10), new(big.Int)).Int64())
	assert.Equal(t, int64(636364), ToSharesUp(big.NewInt(7), big.NewInt(10), new(big.Int)).Int64())

	// Round trip through shares never creates assets.
	shares := ToSharesDown(big.NewInt(1234), big.NewInt(5000), big.NewInt(5_000_000_000))
	assets := ToAssetsDown(shares, big.NewInt(5000), big.NewInt(5_000_000_000))
	assert.LessOrEqual(t, assets.Int64(), int64(1234))
}

func sampleState() MarketState {
	return MarketState{
		TotalSupplyAssets: bi("1000000000"),
		TotalSupplyShares: bi("1000000000000000"),
		TotalBorrowAssets: bi("800000000"),
		TotalBorrowShares: bi("800000000000000"),
		LastUpdate:        1_700_000_000,
		Fee:               bi("100000000000000000"),
	}
}

func TestAccrueInterest(t *testing.T) {
	s := sampleState()
	rate := big.NewInt(1_585_489_599)

	got := AccrueInterest(s.LastUpdate+3600, s, rate)
	assert.Equal(t, "1000004566", got.TotalSupplyAssets.String())
	assert.Equal(t, "800004566", got.TotalBorrowAssets.String())
	assert.Equal(t, "1000000455998125", got.TotalSupplyShares.String())
	assert.Equal(t, s.LastUpdate+3600, got.LastUpdate)

	// Input is untouched.
	assert.Equal(t, "1000000000", s.TotalSupplyAssets.String())

	same := AccrueInterest(s.LastUpdate, s, rate)
	assert.Equal(t, 0, same.TotalSupplyAssets.Cmp(s.TotalSupplyAssets))
}

func TestMorphoAPYs(t *testing.T) {
	s := sampleState()
	rates, err := MorphoAPYs(big.NewInt(1_585_489_599), s, s.LastUpdate+3600)
	require.NoError(t, err)

	assert.InDelta(t, 0.051270833327, rates.BorrowAPY, 1e-9)
	assert.InDelta(t, 0.800000913195, rates.Utilization, 1e-9)
	assert.InDelta(t, 0.036915042133, rates.SupplyAPY, 1e-9)

	empty := MarketState{TotalSupplyAssets: bi("100"), TotalSupplyShares: bi("100")}
	rates, err = MorphoAPYs(big.NewInt(1_585_489_599), empty, 0)
	require.NoError(t, err)
	assert.Zero(t, rates.Utilization)
	assert.Zero(t, rates.SupplyAPY)
}

func TestMorphoHealth(t *testing.T) {
	s := sampleState()
	price := OraclePriceScale() // 1:1
	lltv := bi("860000000000000000")

	pos := MorphoHealth(big.NewInt(1_000_000), price, lltv, new(big.Int), s)
	assert.True(t, pos.Healthy)
	assert.True(t, math.IsInf(pos.HealthFactor, 1))
	assert.Equal(t, 0, pos.HealthFactorWAD.Cmp(MaxUint256()), "no debt reports max uint256")
	assert.Equal(t, 256, pos.HealthFactorWAD.BitLen())
	assert.Equal(t, int64(860_000), pos.MaxBorrow.Int64())

	// 500k borrow shares at 1e6 shares per asset is roughly 500k assets.
	shares := ToSharesUp(big.NewInt(500_000), s.TotalBorrowAssets, s.TotalBorrowShares)
	pos = MorphoHealth(big.NewInt(1_000_000), price, lltv, shares, s)
	assert.True(t, pos.Healthy)
	assert.InDelta(t, 1.72, pos.HealthFactor, 1e-3)
	assert.InDelta(t, pos.HealthFactor, FromWAD(pos.HealthFactorWAD), 1e-12)

	shares = ToSharesUp(big.NewInt(900_000), s.TotalBorrowAssets, s.TotalBorrowShares)
	pos = MorphoHealth(big.NewInt(1_000_000), price, lltv, shares, s)
	assert.False(t, pos.Healthy)
}

func TestUnits(t *testing.T) {
	assert.InDelta(t, 0.05, FromRay(bi("50000000000000000000000000")), 1e-12)
	assert.InDelta(t, 1.5, FromWAD(bi("1500000000000000000")), 1e-12)
	assert.InDelta(t, 12.345678, FromBase(big.NewInt(12_345_678), 6), 1e-9)
	assert.Zero(t, FromWAD(nil))

	assert.InDelta(t, math.Exp(0.05)-1, AprToApy(0.05), 1e-6)
}

func TestHealthHelpers(t *testing.T) {
	assert.True(t, math.IsInf(HealthFactor(100, 0, 0.8), 1))
	assert.InDelta(t, 1.6, HealthFactor(100, 50, 0.8), 1e-12)

	assert.Equal(t, 25.0, BorrowPower(100, 0.75, 50))
	assert.Equal(t, 0.0, BorrowPower(100, 0.5, 80))

	// 10 units of collateral backing debt worth 6 units at 2000.
	p, err := LiquidationPrice(2000, 10, 6, 0.8)
	require.NoError(t, err)
	assert.InDelta(t, 1500, p, 1e-9)

	_, err = LiquidationPrice(2000, 0, 12000, 0.8)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}
