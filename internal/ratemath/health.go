package ratemath

import (
	"math"

	"github.com/bft-labs/stableopt/internal/domain"
)

// HealthFactor returns collateral*threshold/borrowed, or +Inf with no debt.
func HealthFactor(collateral, borrowed, liquidationThreshold float64) float64 {
	if borrowed == 0 {
		return math.Inf(1)
	}
	return collateral * liquidationThreshold / borrowed
}

// BorrowPower returns the remaining borrow capacity, never negative.
func BorrowPower(collateral, collateralFactor, currentBorrows float64) float64 {
	return math.Max(collateral*collateralFactor-currentBorrows, 0)
}

// LiquidationPrice estimates the asset price at which a position becomes
// liquidatable. collateralAmount and debt are both in units of the asset
// currently quoted at price.
func LiquidationPrice(price, collateralAmount, debt, liquidationThreshold float64) (float64, error) {
	denom := collateralAmount * liquidationThreshold
	if denom == 0 {
		return 0, domain.ErrDivisionByZero
	}
	return debt * price / denom, nil
}
