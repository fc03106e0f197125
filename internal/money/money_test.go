package money_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/money"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRound2HalfUp(t *testing.T) {
	cases := map[string]string{
		"6.66666666": "6.67",
		"3.305":      "3.31",
		"3.304":      "3.30",
		"0.005":      "0.01",
		"10":         "10",
	}
	for in, want := range cases {
		got := money.Round2(dec(in))
		if !got.Equal(dec(want)) {
			t.Fatalf("Round2(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := money.Percent(dec("16.50"), dec("20"))
	if !got.Equal(dec("3.30")) {
		t.Fatalf("expected 3.30, got %s", got)
	}
}

func TestFinalAmountNeverNegative(t *testing.T) {
	got := money.FinalAmount(dec("5.00"), dec("9.99"))
	if !got.Equal(decimal.Zero) {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestUnitShareHighPrecision(t *testing.T) {
	unit := money.UnitShare(dec("10.00"), dec("3.00"))
	if !unit.Equal(dec("3.33333333")) {
		t.Fatalf("expected 3.33333333, got %s", unit)
	}
	refund := money.Round2(unit.Mul(dec("2.00")))
	if !refund.Equal(dec("6.67")) {
		t.Fatalf("expected 6.67, got %s", refund)
	}
}

func TestCapAndClamp(t *testing.T) {
	if got := money.Cap(dec("12"), dec("10")); !got.Equal(dec("10")) {
		t.Fatalf("expected cap at 10, got %s", got)
	}
	if got := money.ClampZero(dec("-1")); !got.Equal(decimal.Zero) {
		t.Fatalf("expected clamp to 0, got %s", got)
	}
}
