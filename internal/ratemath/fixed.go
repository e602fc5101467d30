package ratemath

import (
	"math/big"

	"github.com/bft-labs/stableopt/internal/domain"
)

// SecondsPerYear is the compounding horizon used for APY conversions.
const SecondsPerYear = 365 * 24 * 3600

var (
	wad              = pow10(18)
	ray              = pow10(27)
	virtualShares    = pow10(6)
	virtualAssets    = big.NewInt(1)
	oraclePriceScale = pow10(36)
	maxUint256       = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func pow10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

// OraclePriceScale returns 1e36, the scale of Morpho oracle prices.
func OraclePriceScale() *big.Int { return new(big.Int).Set(oraclePriceScale) }

// MaxUint256 returns 2^256 - 1.
func MaxUint256() *big.Int { return new(big.Int).Set(maxUint256) }

// MulDivDown returns x*y/d rounded down.
func MulDivDown(x, y, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, domain.ErrDivisionByZero
	}
	return mulDiv(x, y, d, false), nil
}

// MulDivUp returns x*y/d rounded up.
func MulDivUp(x, y, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, domain.ErrDivisionByZero
	}
	return mulDiv(x, y, d, true), nil
}

// mulDiv assumes d != 0.
func mulDiv(x, y, d *big.Int, up bool) *big.Int {
	n := new(big.Int).Mul(x, y)
	if up {
		n.Add(n, new(big.Int).Sub(d, big.NewInt(1)))
	}
	return n.Quo(n, d)
}

// WMulDown returns x*y/WAD rounded down.
func WMulDown(x, y *big.Int) *big.Int {
	return mulDiv(x, y, wad, false)
}

// WDivDown returns x*WAD/y rounded down.
func WDivDown(x, y *big.Int) (*big.Int, error) {
	return MulDivDown(x, wad, y)
}

// WDivUp returns x*WAD/y rounded up.
func WDivUp(x, y *big.Int) (*big.Int, error) {
	return MulDivUp(x, wad, y)
}

// WTaylorCompounded approximates e^(x*n) - 1 with the first three terms of
// its Taylor expansion. x is a WAD-scaled per-second rate.
func WTaylorCompounded(x *big.Int, n int64) *big.Int {
	first := new(big.Int).Mul(x, big.NewInt(n))
	second := mulDiv(first, first, new(big.Int).Mul(big.NewInt(2), wad), false)
	third := mulDiv(second, first, new(big.Int).Mul(big.NewInt(3), wad), false)
	return first.Add(first, second).Add(first, third)
}

// ToSharesDown converts assets to shares, rounding down.
func ToSharesDown(assets, totalAssets, totalShares *big.Int) *big.Int {
	return mulDiv(assets, new(big.Int).Add(totalShares, virtualShares), new(big.Int).Add(totalAssets, virtualAssets), false)
}

// ToSharesUp converts assets to shares, rounding up.
func ToSharesUp(assets, totalAssets, totalShares *big.Int) *big.Int {
	return mulDiv(assets, new(big.Int).Add(totalShares, virtualShares), new(big.Int).Add(totalAssets, virtualAssets), true)
}

// ToAssetsDown converts shares to assets, rounding down.
func ToAssetsDown(shares, totalAssets, totalShares *big.Int) *big.Int {
	return mulDiv(shares, new(big.Int).Add(totalAssets, virtualAssets), new(big.Int).Add(totalShares, virtualShares), false)
}

// ToAssetsUp converts shares to assets, rounding up.
func ToAssetsUp(shares, totalAssets, totalShares *big.Int) *big.Int {
	return mulDiv(shares, new(big.Int).Add(totalAssets, virtualAssets), new(big.Int).Add(totalShares, virtualShares), true)
}
