package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/noah-isme/kasir-api/internal/order"
)

// Orders held longer than the TTL are voided; fresher held orders and drafts
// survive the sweep.
func TestSweepVoidsOnlyStaleHeldOrders(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "2.00")
	ctx := context.Background()

	stale := f.newOrder(t)
	if _, err := f.engine.AddItem(ctx, stale.Order.ID, p.ID, dec("1"), nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.engine.Hold(ctx, stale.Order.ID); err != nil {
		t.Fatalf("Hold: %v", err)
	}

	// advance the clock past the TTL, then hold a second order
	base := testNow
	now := base.Add(48 * time.Hour)
	f.engine.Now = func() time.Time { return now }
	fresh := f.newOrder(t)
	if _, err := f.engine.Hold(ctx, fresh.Order.ID); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	draft := f.newOrder(t)

	sweeper := &order.Sweeper{Engine: f.engine, List: f.store, TTL: 24 * time.Hour}
	swept, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept order, got %d", swept)
	}
	if _, err := f.engine.Get(ctx, stale.Order.ID); err == nil {
		t.Fatal("expected stale held order to be voided")
	}
	if _, err := f.engine.Get(ctx, fresh.Order.ID); err != nil {
		t.Fatalf("fresh held order should survive: %v", err)
	}
	if _, err := f.engine.Get(ctx, draft.Order.ID); err != nil {
		t.Fatalf("draft order should survive: %v", err)
	}
}
