// Package ratemath implements the fixed-point arithmetic used to turn raw
// on-chain lending state into comparable rates.
//
// Integer helpers follow Morpho Blue's MathLib and SharesMathLib semantics:
// WAD-scaled (1e18) values, round-down/round-up mulDiv, a third-order Taylor
// expansion for continuous compounding and virtual shares/assets for share
// conversions. All *big.Int arguments are treated as read-only.
package ratemath
