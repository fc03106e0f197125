package offer_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/offer"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func percentOffer(value string) offer.Offer {
	return offer.Offer{ID: uuid.New(), Kind: offer.KindPercentage, Value: dec(value)}
}

func fixedOffer(value string) offer.Offer {
	return offer.Offer{ID: uuid.New(), Kind: offer.KindFixedAmount, Value: dec(value)}
}

func TestDiscountPercentage(t *testing.T) {
	got := offer.Discount(percentOffer("20"), dec("16.50"))
	if !got.Equal(dec("3.30")) {
		t.Fatalf("expected 3.30, got %s", got)
	}
}

func TestDiscountFixedCappedAtBase(t *testing.T) {
	got := offer.Discount(fixedOffer("25.00"), dec("10.00"))
	if !got.Equal(dec("10.00")) {
		t.Fatalf("expected cap at 10.00, got %s", got)
	}
}

func TestDiscountBounds(t *testing.T) {
	offers := []offer.Offer{
		percentOffer("0.01"), percentOffer("50"), percentOffer("100"),
		fixedOffer("0.01"), fixedOffer("3.33"), fixedOffer("999999"),
	}
	bases := []string{"0", "0.01", "1", "16.50", "12345.67"}
	for _, o := range offers {
		for _, b := range bases {
			base := dec(b)
			got := offer.Discount(o, base)
			if got.IsNegative() || got.GreaterThan(base) {
				t.Fatalf("discount %s outside [0, %s] for offer %+v", got, base, o)
			}
		}
	}
}

func TestDiscountZeroBase(t *testing.T) {
	if got := offer.Discount(fixedOffer("5.00"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero discount on zero base, got %s", got)
	}
}

func TestApplicableAtWindow(t *testing.T) {
	now := time.Now()
	o := offer.Offer{Active: true, StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)}
	if !o.ApplicableAt(now) {
		t.Fatal("expected offer applicable inside window")
	}
	if o.ApplicableAt(now.Add(2 * time.Hour)) {
		t.Fatal("expected offer not applicable after window")
	}
	o.Active = false
	if o.ApplicableAt(now) {
		t.Fatal("expected inactive offer not applicable")
	}
}

func TestValidateBundleRequiresTwoProducts(t *testing.T) {
	pid := uuid.New()
	o := offer.Offer{
		Code:    "BUNDLE-1",
		Type:    offer.TypeBundle,
		Kind:    offer.KindFixedAmount,
		Value:   dec("4.00"),
		EndAt:   time.Now().Add(time.Hour),
		StartAt: time.Now(),
		BundleItems: []offer.BundleItem{
			{ProductID: pid, RequiredQty: dec("1")},
			{ProductID: pid, RequiredQty: dec("2")},
		},
	}
	if err := o.Validate(); err == nil {
		t.Fatal("expected error for bundle with fewer than two distinct products")
	}
}
