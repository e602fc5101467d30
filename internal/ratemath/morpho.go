package ratemath

import (
	"math"
	"math/big"
)

// MarketState mirrors a Morpho Blue market's accounting totals.
type MarketState struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        int64
	// Fee is WAD-scaled.
	Fee *big.Int
}

// Clone returns a deep copy of the state.
func (s MarketState) Clone() MarketState {
	cp := func(x *big.Int) *big.Int {
		if x == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(x)
	}
	return MarketState{
		TotalSupplyAssets: cp(s.TotalSupplyAssets),
		TotalSupplyShares: cp(s.TotalSupplyShares),
		TotalBorrowAssets: cp(s.TotalBorrowAssets),
		TotalBorrowShares: cp(s.TotalBorrowShares),
		LastUpdate:        s.LastUpdate,
		Fee:               cp(s.Fee),
	}
}

// AccrueInterest projects the market state to timestamp now using the
// per-second borrow rate. The input state is not modified.
func AccrueInterest(now int64, s MarketState, borrowRate *big.Int) MarketState {
	out := s.Clone()
	elapsed := now - s.LastUpdate
	if elapsed <= 0 || out.TotalBorrowAssets.Sign() == 0 {
		return out
	}

	interest := WMulDown(out.TotalBorrowAssets, WTaylorCompounded(borrowRate, elapsed))
	out.TotalSupplyAssets.Add(out.TotalSupplyAssets, interest)
	out.TotalBorrowAssets.Add(out.TotalBorrowAssets, interest)
	out.LastUpdate = now

	if out.Fee.Sign() != 0 {
		feeAmount := WMulDown(interest, out.Fee)
		feeShares := ToSharesDown(feeAmount, new(big.Int).Sub(out.TotalSupplyAssets, feeAmount), out.TotalSupplyShares)
		out.TotalSupplyShares.Add(out.TotalSupplyShares, feeShares)
	}
	return out
}

// MorphoRates holds the annualized rates of a Morpho market as fractions.
type MorphoRates struct {
	SupplyAPY   float64
	BorrowAPY   float64
	Utilization float64
	// State is the market state accrued to the observation time.
	State MarketState
}

// MorphoAPYs derives supply and borrow APY from the IRM's per-second borrow
// rate. Supply APY is the borrow APY net of the protocol fee, scaled by
// utilization.
func MorphoAPYs(borrowRate *big.Int, s MarketState, now int64) (MorphoRates, error) {
	borrowAPY := WTaylorCompounded(borrowRate, SecondsPerYear)
	accrued := AccrueInterest(now, s, borrowRate)

	utilization := new(big.Int)
	if accrued.TotalBorrowAssets.Sign() != 0 {
		u, err := WDivUp(accrued.TotalBorrowAssets, accrued.TotalSupplyAssets)
		if err != nil {
			return MorphoRates{}, err
		}
		utilization = u
	}

	netOfFee := new(big.Int).Sub(wad, accrued.Fee)
	supplyAPY := WMulDown(WMulDown(borrowAPY, netOfFee), utilization)

	return MorphoRates{
		SupplyAPY:   FromWAD(supplyAPY),
		BorrowAPY:   FromWAD(borrowAPY),
		Utilization: FromWAD(utilization),
		State:       accrued,
	}, nil
}

// MorphoPosition describes a borrower's standing in a Morpho market.
type MorphoPosition struct {
	MaxBorrow    *big.Int
	BorrowAssets *big.Int
	// HealthFactorWAD is maxBorrow/borrowAssets scaled by 1e18, or
	// 2^256-1 when the position has no debt.
	HealthFactorWAD *big.Int
	// HealthFactor is HealthFactorWAD as a float, +Inf without debt.
	HealthFactor float64
	Healthy      bool
}

// MorphoHealth evaluates a position from its collateral, the oracle price
// (scaled by 1e36), the market's liquidation LTV (WAD) and borrow shares.
func MorphoHealth(collateral, price, lltv, borrowShares *big.Int, s MarketState) MorphoPosition {
	borrowAssets := ToAssetsUp(borrowShares, s.TotalBorrowAssets, s.TotalBorrowShares)
	maxBorrow := WMulDown(mulDiv(collateral, price, oraclePriceScale, false), lltv)

	pos := MorphoPosition{
		MaxBorrow:       maxBorrow,
		BorrowAssets:    borrowAssets,
		Healthy:         maxBorrow.Cmp(borrowAssets) >= 0,
		HealthFactorWAD: MaxUint256(),
		HealthFactor:    math.Inf(1),
	}
	if borrowAssets.Sign() != 0 {
		pos.HealthFactorWAD = mulDiv(maxBorrow, wad, borrowAssets, false)
		pos.HealthFactor = FromWAD(pos.HealthFactorWAD)
	}
	return pos
}
