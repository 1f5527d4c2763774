// Package format renders byte counts for display.
package format

import (
	"math/big"
	"strconv"
)

// DefaultDecimals is the precision used by the workflow when displaying sizes.
const DefaultDecimals = 2

var units = []string{"Bytes", "KB", "MB", "GB"}

// Bytes renders n with the largest unit among Bytes, KB, MB and GB whose scaled
// value is at least 1, rounded to decimals places with trailing zeros dropped.
// Ties round up, so 1152 bytes is "1.13 KB". Zero renders as "0 Bytes".
// Negative decimals are treated as zero. The result for negative n is unspecified.
func Bytes(n int64, decimals int) string {
	if n == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}

	// Round first, then print the shortest form so 1.50 becomes 1.5.
	return strconv.FormatFloat(roundHalfUp(value, decimals), 'f', -1, 64) + " " + units[unit]
}

// roundHalfUp rounds the exact binary value of v to decimals places, taking the
// larger neighbour on a tie.
func roundHalfUp(v float64, decimals int) float64 {
	exact := new(big.Rat).SetFloat64(v)
	if exact == nil {
		return v
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	scaled := exact.Mul(exact, new(big.Rat).SetInt(scale))
	scaled.Add(scaled, big.NewRat(1, 2))
	floor := new(big.Int).Quo(scaled.Num(), scaled.Denom())

	rounded, _ := new(big.Rat).SetFrac(floor, scale).Float64()
	return rounded
}
