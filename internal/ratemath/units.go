package ratemath

import (
	"math"
	"math/big"
)

func ratio(x, scale *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(x), new(big.Float).SetInt(scale)).Float64()
	return f
}

// FromWAD converts a WAD-scaled integer to a float.
func FromWAD(x *big.Int) float64 { return ratio(x, wad) }

// FromRay converts a ray-scaled (1e27) integer to a float.
func FromRay(x *big.Int) float64 { return ratio(x, ray) }

// FromBase converts integer token units to a float using the token decimals.
func FromBase(x *big.Int, decimals int) float64 {
	return ratio(x, pow10(int64(decimals)))
}

// AprToApy converts a simple annual rate to its per-second compounded
// annual yield. Both values are fractions (0.05 means 5%).
func AprToApy(apr float64) float64 {
	return math.Pow(1+apr/SecondsPerYear, SecondsPerYear) - 1
}
