package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/catalog"
	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/offer"
	"github.com/noah-isme/kasir-api/internal/order"
	"github.com/noah-isme/kasir-api/internal/payment"
	"github.com/noah-isme/kasir-api/internal/session"
	"github.com/noah-isme/kasir-api/internal/store/memory"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	store   *memory.Store
	engine  *order.Engine
	session session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	sess := session.Session{ID: uuid.New(), Terminal: "kasir-1", Status: session.StatusOpen, OpenedAt: testNow}
	store.PutSession(sess)
	engine := &order.Engine{
		Store:          store.Orders(),
		TaxRatePercent: dec("10"),
		Now:            func() time.Time { return testNow },
	}
	return &fixture{store: store, engine: engine, session: sess}
}

func (f *fixture) product(t *testing.T, price string, categories ...uuid.UUID) catalog.Product {
	t.Helper()
	p := catalog.Product{
		ID:          uuid.New(),
		SKU:         "SKU-" + uuid.NewString()[:8],
		Name:        "produk",
		UnitPrice:   dec(price),
		Active:      true,
		CategoryIDs: categories,
	}
	f.store.PutProduct(p)
	return p
}

func (f *fixture) newOrder(t *testing.T) order.Summary {
	t.Helper()
	sum, err := f.engine.CreateOrder(context.Background(), f.session.ID, nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return sum
}

func wantBusinessRule(t *testing.T, err error) {
	t.Helper()
	ae, ok := common.AsAppError(err)
	if !ok || ae.Code != common.CodeBusinessRule {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

// Item priced 5.50 qty 3 with a 20% product offer prices to line total 13.20,
// tax 1.32 on the discounted subtotal, grand total 14.52.
func TestAddItemWithProductOffer(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "5.50")
	f.store.PutOffer(offer.Offer{
		ID: uuid.New(), Code: "PROMO20", Type: offer.TypeProduct,
		Kind: offer.KindPercentage, Value: dec("20"), Active: true,
		ProductIDs: []uuid.UUID{p.ID},
	})

	o := f.newOrder(t)
	sum, err := f.engine.AddItem(context.Background(), o.Order.ID, p.ID, dec("3"), nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(sum.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(sum.Items))
	}
	li := sum.Items[0]
	if !li.Discount.Equal(dec("3.30")) {
		t.Fatalf("expected discount 3.30, got %s", li.Discount)
	}
	if !li.LineTotal.Equal(dec("13.20")) {
		t.Fatalf("expected line total 13.20, got %s", li.LineTotal)
	}
	if !sum.Order.Subtotal.Equal(dec("13.20")) {
		t.Fatalf("expected subtotal 13.20, got %s", sum.Order.Subtotal)
	}
	if !sum.Order.TaxAmount.Equal(dec("1.32")) {
		t.Fatalf("expected tax 1.32, got %s", sum.Order.TaxAmount)
	}
	if !sum.Order.GrandTotal.Equal(dec("14.52")) {
		t.Fatalf("expected grand total 14.52, got %s", sum.Order.GrandTotal)
	}
}

// Adding the same product twice merges quantities onto one line with the
// unit price frozen at first add, regardless of later catalog changes.
func TestAddItemMergesAndFreezesPrice(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "2.00")
	o := f.newOrder(t)
	ctx := context.Background()

	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	p.UnitPrice = dec("9.99")
	f.store.PutProduct(p)
	sum, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("2"), nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(sum.Items) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(sum.Items))
	}
	if !sum.Items[0].UnitPrice.Equal(dec("2.00")) {
		t.Fatalf("expected frozen unit price 2.00, got %s", sum.Items[0].UnitPrice)
	}
	if !sum.Items[0].Qty.Equal(dec("3")) {
		t.Fatalf("expected qty 3, got %s", sum.Items[0].Qty)
	}
	if !sum.Order.GrandTotal.Equal(dec("6.60")) {
		t.Fatalf("expected grand total 6.60, got %s", sum.Order.GrandTotal)
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "2.00")
	p.Active = false
	f.store.PutProduct(p)
	o := f.newOrder(t)

	_, err := f.engine.AddItem(context.Background(), o.Order.ID, p.ID, dec("1"), nil)
	wantBusinessRule(t, err)
}

func TestCreateOrderRequiresOpenSession(t *testing.T) {
	f := newFixture(t)
	closedAt := testNow
	f.store.PutSession(session.Session{ID: f.session.ID, Terminal: "kasir-1", Status: session.StatusClosed, ClosedAt: &closedAt})

	_, err := f.engine.CreateOrder(context.Background(), f.session.ID, nil)
	wantBusinessRule(t, err)
}

// A manual line discount replaces the offer-derived one, clears the applied
// offer and survives later quantity changes.
func TestManualDiscountPinsLine(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00")
	f.store.PutOffer(offer.Offer{
		ID: uuid.New(), Code: "HALF", Type: offer.TypeProduct,
		Kind: offer.KindPercentage, Value: dec("50"), Active: true,
		ProductIDs: []uuid.UUID{p.ID},
	})
	o := f.newOrder(t)
	ctx := context.Background()

	manual := dec("1.00")
	sum, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), &manual)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	li := sum.Items[0]
	if !li.ManualDiscount || li.AppliedOfferID != nil {
		t.Fatal("expected line pinned with no applied offer")
	}
	if !li.Discount.Equal(dec("1.00")) {
		t.Fatalf("expected manual discount 1.00, got %s", li.Discount)
	}

	sum, err = f.engine.UpdateItemQuantity(ctx, o.Order.ID, p.ID, dec("1"))
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	li = sum.Items[0]
	if !li.ManualDiscount || !li.Discount.Equal(dec("1.00")) {
		t.Fatalf("expected pinned discount to survive quantity change, got %s", li.Discount)
	}
}

func TestUpdateItemQuantityRemovesAtZero(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "3.00")
	o := f.newOrder(t)
	ctx := context.Background()

	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("2"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	sum, err := f.engine.UpdateItemQuantity(ctx, o.Order.ID, p.ID, dec("-2"))
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	if len(sum.Items) != 0 {
		t.Fatalf("expected empty order, got %d lines", len(sum.Items))
	}
	if !sum.Order.GrandTotal.IsZero() {
		t.Fatalf("expected zero grand total, got %s", sum.Order.GrandTotal)
	}

	if _, err := f.engine.UpdateItemQuantity(ctx, o.Order.ID, p.ID, decimal.Zero); err == nil {
		t.Fatal("expected zero delta to be rejected")
	}
}

// An explicit order discount wins over automatic resolution until the next
// item mutation re-triggers it.
func TestApplyDiscountExplicitThenSuperseded(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00")
	o := f.newOrder(t)
	ctx := context.Background()

	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("2"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	amount := dec("5.00")
	sum, err := f.engine.ApplyDiscount(ctx, o.Order.ID, &amount, nil)
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if !sum.Order.ManualDiscount || !sum.Order.DiscountAmount.Equal(dec("5.00")) {
		t.Fatalf("expected explicit discount 5.00, got %s", sum.Order.DiscountAmount)
	}
	// taxable 15.00, tax 1.50
	if !sum.Order.GrandTotal.Equal(dec("16.50")) {
		t.Fatalf("expected grand total 16.50, got %s", sum.Order.GrandTotal)
	}

	sum, err = f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if sum.Order.ManualDiscount || !sum.Order.DiscountAmount.IsZero() {
		t.Fatalf("expected automatic trigger to supersede explicit discount, got %s", sum.Order.DiscountAmount)
	}
}

func TestApplyDiscountValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00")
	o := f.newOrder(t)
	ctx := context.Background()
	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	amount, pct := dec("1.00"), dec("10")
	if _, err := f.engine.ApplyDiscount(ctx, o.Order.ID, &amount, &pct); err == nil {
		t.Fatal("expected both amount and percentage to be rejected")
	}
	if _, err := f.engine.ApplyDiscount(ctx, o.Order.ID, nil, nil); err == nil {
		t.Fatal("expected neither amount nor percentage to be rejected")
	}
	over := dec("120")
	if _, err := f.engine.ApplyDiscount(ctx, o.Order.ID, nil, &over); err == nil {
		t.Fatal("expected percentage above 100 to be rejected")
	}
}

// Recalculating twice with no intervening mutation yields identical totals.
func TestRecalculateIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "7.35")
	o := f.newOrder(t)
	ctx := context.Background()

	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("3"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	first, err := f.engine.Recalculate(ctx, o.Order.ID)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	second, err := f.engine.Recalculate(ctx, o.Order.ID)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if !first.Order.Subtotal.Equal(second.Order.Subtotal) ||
		!first.Order.DiscountAmount.Equal(second.Order.DiscountAmount) ||
		!first.Order.TaxAmount.Equal(second.Order.TaxAmount) ||
		!first.Order.GrandTotal.Equal(second.Order.GrandTotal) {
		t.Fatalf("expected identical totals, got %+v then %+v", first.Order, second.Order)
	}
}

func TestHoldRetrieveVoid(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "4.00")
	o := f.newOrder(t)
	ctx := context.Background()
	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	sum, err := f.engine.Hold(ctx, o.Order.ID)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if sum.Order.Status != order.StatusHeld {
		t.Fatalf("expected HELD, got %s", sum.Order.Status)
	}
	if _, err := f.engine.Hold(ctx, o.Order.ID); err == nil {
		t.Fatal("expected holding a held order to fail")
	}

	sum, err = f.engine.Retrieve(ctx, o.Order.ID)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if sum.Order.Status != order.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", sum.Order.Status)
	}

	if err := f.engine.Void(ctx, o.Order.ID); err != nil {
		t.Fatalf("Void: %v", err)
	}
	if _, err := f.engine.Get(ctx, o.Order.ID); err == nil {
		t.Fatal("expected voided order to be gone")
	}
}

// A paid order rejects every pricing mutation and cannot be voided.
func TestPaidOrderIsImmutable(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00")
	o := f.newOrder(t)
	ctx := context.Background()
	if _, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	pay := &payment.Service{Store: f.store.Payments(), Now: func() time.Time { return testNow }}
	if _, err := pay.Process(ctx, o.Order.ID, payment.Request{Method: payment.MethodCash, Amount: dec("11.00")}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	_, err := f.engine.AddItem(ctx, o.Order.ID, p.ID, dec("1"), nil)
	wantBusinessRule(t, err)
	_, err = f.engine.UpdateItemQuantity(ctx, o.Order.ID, p.ID, dec("1"))
	wantBusinessRule(t, err)
	amount := dec("1.00")
	_, err = f.engine.ApplyDiscount(ctx, o.Order.ID, &amount, nil)
	wantBusinessRule(t, err)
	err = f.engine.Void(ctx, o.Order.ID)
	wantBusinessRule(t, err)
}

// The category offer applies only to the line whose product has no product
// offer; the order-level offer applies on top once the minimum is met.
func TestLayeredResolutionAcrossOfferTypes(t *testing.T) {
	f := newFixture(t)
	cat := uuid.New()
	pa := f.product(t, "10.00")
	pb := f.product(t, "20.00", cat)
	f.store.PutOffer(offer.Offer{
		ID: uuid.New(), Code: "PROD10", Type: offer.TypeProduct,
		Kind: offer.KindPercentage, Value: dec("10"), Active: true,
		ProductIDs: []uuid.UUID{pa.ID},
	})
	f.store.PutOffer(offer.Offer{
		ID: uuid.New(), Code: "CAT5", Type: offer.TypeCategory,
		Kind: offer.KindFixedAmount, Value: dec("5.00"), Active: true,
		CategoryIDs: []uuid.UUID{cat},
	})
	f.store.PutOffer(offer.Offer{
		ID: uuid.New(), Code: "BIGBASKET", Type: offer.TypeOrder,
		Kind: offer.KindFixedAmount, Value: dec("2.00"), Active: true,
		MinOrderAmount: dec("20.00"),
	})
	o := f.newOrder(t)
	ctx := context.Background()

	if _, err := f.engine.AddItem(ctx, o.Order.ID, pa.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	sum, err := f.engine.AddItem(ctx, o.Order.ID, pb.ID, dec("1"), nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// line A: 10.00 − 1.00, line B: 20.00 − 5.00 → subtotal 24.00
	if !sum.Order.Subtotal.Equal(dec("24.00")) {
		t.Fatalf("expected subtotal 24.00, got %s", sum.Order.Subtotal)
	}
	if !sum.Order.DiscountAmount.Equal(dec("2.00")) {
		t.Fatalf("expected order discount 2.00, got %s", sum.Order.DiscountAmount)
	}
	// taxable 22.00, tax 2.20
	if !sum.Order.GrandTotal.Equal(dec("24.20")) {
		t.Fatalf("expected grand total 24.20, got %s", sum.Order.GrandTotal)
	}
}
