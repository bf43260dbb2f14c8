// Package money provides the fixed-precision primitives shared by all
// monetary arithmetic in the settlement core. Amounts carry two fraction
// digits; rounding is half away from zero on a scaled integer basis.
package money

import "github.com/shopspring/decimal"

// Scale is the number of fraction digits carried by monetary amounts.
const Scale = 2

// Round normalises v to two fraction digits using half-away-from-zero
// semantics. Round is idempotent: Round(Round(v)) equals Round(v).
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Scale)
}

// Clamp bounds v to [min, max]. The lower bound is checked first, so with
// inverted bounds (min > max) any v below min still yields min; this
// behaviour is relied on by the discount math and must not change.
func Clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// FromFloat converts a float64 coming in over the wire into a rounded amount.
func FromFloat(v float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(v))
}

// Zero is the canonical zero amount.
var Zero = decimal.Zero
