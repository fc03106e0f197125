package offer

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/money"
)

// Discount computes the discount an offer yields on the given base amount.
// The result is rounded to two decimals, never exceeds the base and never
// goes below zero.
func Discount(o Offer, base decimal.Decimal) decimal.Decimal {
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch o.Kind {
	case KindPercentage:
		amount = money.Percent(base, o.Value)
	case KindFixedAmount:
		amount = money.Round2(o.Value)
	default:
		return decimal.Zero
	}
	return money.ClampZero(money.Cap(amount, base))
}
