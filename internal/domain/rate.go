package domain

import (
	"math"
	"time"
)

// Rate is a normalized observation of one market.
// APY values are expressed in percent (3.5 means 3.5%).
type Rate struct {
	Market Market `json:"market"`

	SupplyAPY float64 `json:"supply_apy"`
	// BorrowAPY is zero when the market quotes no borrow rate.
	BorrowAPY float64 `json:"borrow_apy"`

	// Utilization is the borrowed fraction of supplied assets (0..1).
	Utilization float64 `json:"utilization"`

	TotalSupply float64 `json:"total_supply"`
	TotalBorrow float64 `json:"total_borrow"`

	ObservedAt time.Time `json:"observed_at"`
}

// HasBorrow reports whether the market quotes a usable borrow rate.
func (r Rate) HasBorrow() bool {
	return r.BorrowAPY > 0 && !math.IsNaN(r.BorrowAPY) && !math.IsInf(r.BorrowAPY, 0)
}

// Valid reports whether the rate carries finite, non-negative APYs.
func (r Rate) Valid() bool {
	for _, v := range []float64{r.SupplyAPY, r.BorrowAPY} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return r.Market.Key != ""
}
