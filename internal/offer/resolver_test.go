package offer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/offer"
)

func line(pid uuid.UUID, unitPrice, qty string) offer.Line {
	return offer.Line{
		ItemID:    uuid.New(),
		ProductID: pid,
		UnitPrice: dec(unitPrice),
		Qty:       dec(qty),
	}
}

// Item priced 5.50, qty 3, 20% product offer: line amount 16.50, discount 3.30.
func TestResolveProductOffer(t *testing.T) {
	pid := uuid.New()
	ln := line(pid, "5.50", "3")
	promo := percentOffer("20")
	promo.Type = offer.TypeProduct
	promo.ProductIDs = []uuid.UUID{pid}

	res := offer.ResolveLines([]offer.Line{ln}, offer.Set{Products: []offer.Offer{promo}})
	got, ok := res[ln.ItemID]
	if !ok {
		t.Fatal("expected a resolution for the line")
	}
	if !got.Discount.Equal(dec("3.30")) {
		t.Fatalf("expected discount 3.30, got %s", got.Discount)
	}
	if got.OfferID != promo.ID {
		t.Fatalf("expected offer %s, got %s", promo.ID, got.OfferID)
	}
}

// Bundle of A qty1 @10.00 and B qty1 @6.00 with a fixed 4.00 discount
// distributes 2.50 to A and 1.50 to B.
func TestResolveBundleDistribution(t *testing.T) {
	pidA, pidB := uuid.New(), uuid.New()
	lnA := line(pidA, "10.00", "1")
	lnB := line(pidB, "6.00", "1")
	bundle := fixedOffer("4.00")
	bundle.Type = offer.TypeBundle
	bundle.BundleItems = []offer.BundleItem{
		{ProductID: pidA, RequiredQty: dec("1")},
		{ProductID: pidB, RequiredQty: dec("1")},
	}

	res := offer.ResolveLines([]offer.Line{lnA, lnB}, offer.Set{Bundles: []offer.Offer{bundle}})
	if !res[lnA.ItemID].Discount.Equal(dec("2.50")) {
		t.Fatalf("expected 2.50 for A, got %s", res[lnA.ItemID].Discount)
	}
	if !res[lnB.ItemID].Discount.Equal(dec("1.50")) {
		t.Fatalf("expected 1.50 for B, got %s", res[lnB.ItemID].Discount)
	}
}

// The distributed shares must reconcile exactly to the bundle discount even
// when the proportional shares round awkwardly.
func TestBundleDistributionReconciles(t *testing.T) {
	prices := [][2]string{{"3.33", "1"}, {"3.33", "1"}, {"3.34", "1"}, {"7.77", "2"}}
	lines := make([]offer.Line, 0, len(prices))
	items := make([]offer.BundleItem, 0, len(prices))
	for _, p := range prices {
		pid := uuid.New()
		lines = append(lines, line(pid, p[0], p[1]))
		items = append(items, offer.BundleItem{ProductID: pid, RequiredQty: dec(p[1])})
	}
	bundle := fixedOffer("10.00")
	bundle.Type = offer.TypeBundle
	bundle.BundleItems = items

	res := offer.ResolveLines(lines, offer.Set{Bundles: []offer.Offer{bundle}})
	sum := decimal.Zero
	for _, ln := range lines {
		sum = sum.Add(res[ln.ItemID].Discount)
	}
	if !sum.Equal(dec("10.00")) {
		t.Fatalf("expected shares to sum to 10.00, got %s", sum)
	}
}

// Lines consumed by the winning bundle are excluded from product resolution.
func TestBundlePreemptsProductOffer(t *testing.T) {
	pidA, pidB := uuid.New(), uuid.New()
	lnA := line(pidA, "10.00", "1")
	lnB := line(pidB, "6.00", "1")
	bundle := fixedOffer("4.00")
	bundle.Type = offer.TypeBundle
	bundle.BundleItems = []offer.BundleItem{
		{ProductID: pidA, RequiredQty: dec("1")},
		{ProductID: pidB, RequiredQty: dec("1")},
	}
	productPromo := percentOffer("50")
	productPromo.Type = offer.TypeProduct
	productPromo.ProductIDs = []uuid.UUID{pidA}

	res := offer.ResolveLines([]offer.Line{lnA, lnB}, offer.Set{
		Bundles:  []offer.Offer{bundle},
		Products: []offer.Offer{productPromo},
	})
	if res[lnA.ItemID].OfferID != bundle.ID {
		t.Fatalf("expected bundle to win on A, got offer %s", res[lnA.ItemID].OfferID)
	}
	if !res[lnA.ItemID].Discount.Equal(dec("2.50")) {
		t.Fatalf("expected bundle share 2.50 on A, got %s", res[lnA.ItemID].Discount)
	}
}

// An unsatisfied bundle (missing quantity) leaves lines to product resolution.
func TestBundleRequiresFullQuantities(t *testing.T) {
	pidA, pidB := uuid.New(), uuid.New()
	lnA := line(pidA, "10.00", "1")
	lnB := line(pidB, "6.00", "1")
	bundle := fixedOffer("4.00")
	bundle.Type = offer.TypeBundle
	bundle.BundleItems = []offer.BundleItem{
		{ProductID: pidA, RequiredQty: dec("2")},
		{ProductID: pidB, RequiredQty: dec("1")},
	}

	res := offer.ResolveLines([]offer.Line{lnA, lnB}, offer.Set{Bundles: []offer.Offer{bundle}})
	if len(res) != 0 {
		t.Fatalf("expected no resolutions, got %d", len(res))
	}
}

// Category offers apply only when no product offer matched the line.
func TestCategoryOnlyWithoutProductMatch(t *testing.T) {
	pid, cid := uuid.New(), uuid.New()
	ln := line(pid, "8.00", "1")
	ln.CategoryIDs = []uuid.UUID{cid}

	productPromo := percentOffer("10")
	productPromo.Type = offer.TypeProduct
	productPromo.ProductIDs = []uuid.UUID{pid}

	categoryPromo := percentOffer("50")
	categoryPromo.Type = offer.TypeCategory
	categoryPromo.CategoryIDs = []uuid.UUID{cid}

	set := offer.Set{Products: []offer.Offer{productPromo}, Categories: []offer.Offer{categoryPromo}}
	res := offer.ResolveLines([]offer.Line{ln}, set)
	if res[ln.ItemID].OfferID != productPromo.ID {
		t.Fatal("expected product offer to take priority over category offer")
	}

	res = offer.ResolveLines([]offer.Line{ln}, offer.Set{Categories: []offer.Offer{categoryPromo}})
	if res[ln.ItemID].OfferID != categoryPromo.ID {
		t.Fatal("expected category offer when no product offer matches")
	}
}

func TestPinnedLineSkipsResolution(t *testing.T) {
	pid := uuid.New()
	ln := line(pid, "5.00", "2")
	ln.Pinned = true
	promo := percentOffer("20")
	promo.Type = offer.TypeProduct
	promo.ProductIDs = []uuid.UUID{pid}

	res := offer.ResolveLines([]offer.Line{ln}, offer.Set{Products: []offer.Offer{promo}})
	if _, ok := res[ln.ItemID]; ok {
		t.Fatal("expected pinned line to keep its manual discount")
	}
}

func TestResolveOrderMinimumAndBest(t *testing.T) {
	small := fixedOffer("2.00")
	small.Type = offer.TypeOrder
	small.MinOrderAmount = dec("10.00")
	big := percentOffer("10")
	big.Type = offer.TypeOrder
	big.MinOrderAmount = dec("50.00")

	d, id, ok := offer.ResolveOrder(dec("40.00"), []offer.Offer{small, big})
	if !ok || id != small.ID || !d.Equal(dec("2.00")) {
		t.Fatalf("expected small offer 2.00 below threshold, got %s ok=%v", d, ok)
	}

	d, id, ok = offer.ResolveOrder(dec("100.00"), []offer.Offer{small, big})
	if !ok || id != big.ID || !d.Equal(dec("10.00")) {
		t.Fatalf("expected big offer 10.00, got %s", d)
	}

	_, _, ok = offer.ResolveOrder(dec("5.00"), []offer.Offer{small, big})
	if ok {
		t.Fatal("expected no offer below every minimum")
	}
}

// Equal discounts resolve to the lowest offer id, deterministically.
func TestTieBreakLowestOfferID(t *testing.T) {
	pid := uuid.New()
	ln := line(pid, "10.00", "1")
	a := percentOffer("10")
	a.Type = offer.TypeProduct
	a.ProductIDs = []uuid.UUID{pid}
	b := percentOffer("10")
	b.Type = offer.TypeProduct
	b.ProductIDs = []uuid.UUID{pid}

	want := a.ID
	if b.ID.String() < a.ID.String() {
		want = b.ID
	}
	for range 10 {
		res := offer.ResolveLines([]offer.Line{ln}, offer.Set{Products: []offer.Offer{a, b}})
		if res[ln.ItemID].OfferID != want {
			t.Fatalf("expected deterministic winner %s, got %s", want, res[ln.ItemID].OfferID)
		}
	}
}
