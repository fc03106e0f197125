// Package money provides fixed-point monetary arithmetic with a 2-decimal
// scale. All amounts are shopspring decimals; binary floating point is never
// used. Rounding is half-up on the second decimal place.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to two decimal places, half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns pct percent of base, rounded to two decimal places.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// Rate applies a fractional percentage rate (e.g. tax) to base, rounded half-up.
func Rate(base, ratePercent decimal.Decimal) decimal.Decimal {
	return Percent(base, ratePercent)
}

// Cap limits d to at most max.
func Cap(d, max decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(max) {
		return max
	}
	return d
}

// ClampZero floors negative amounts at zero.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FinalAmount returns max(0, base − discount).
func FinalAmount(base, discount decimal.Decimal) decimal.Decimal {
	return ClampZero(base.Sub(discount))
}

// UnitShare divides total by qty at high precision (8 decimal places) for
// intermediate per-unit economics. Callers round the final product with Round2.
func UnitShare(total, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.DivRound(qty, 8)
}
