package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/money"
	"github.com/noah-isme/kasir-api/internal/offer"
	"github.com/noah-isme/kasir-api/internal/session"
)

// Engine orchestrates item mutation, offer resolution and total
// recalculation. Every public method runs as one unit of work.
type Engine struct {
	Store          Store
	TaxRatePercent decimal.Decimal
	Now            func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CreateOrder opens a new draft order against an open session.
func (e *Engine) CreateOrder(ctx context.Context, sessionID uuid.UUID, customerID *uuid.UUID) (Summary, error) {
	if e == nil || e.Store == nil {
		return Summary{}, errors.New("order engine not configured")
	}
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := session.RequireOpen(sess); err != nil {
			return err
		}
		now := e.now()
		o := Order{
			ID:             uuid.New(),
			SessionID:      sessionID,
			Status:         StatusDraft,
			Subtotal:       decimal.Zero,
			DiscountAmount: decimal.Zero,
			TaxAmount:      decimal.Zero,
			GrandTotal:     decimal.Zero,
			CustomerID:     customerID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		out = Summary{Order: o}
		return nil
	})
	return out, err
}

// Get loads an order with its lines.
func (e *Engine) Get(ctx context.Context, orderID uuid.UUID) (Summary, error) {
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		out = Summary{Order: o, Items: items}
		return nil
	})
	return out, err
}

// AddItem merges qty into an existing line for the product or creates a new
// line with the unit price frozen from the catalog, then re-resolves offers
// and recalculates totals. A manual discount pins the line and clears any
// offer-derived discount.
func (e *Engine) AddItem(ctx context.Context, orderID, productID uuid.UUID, qty decimal.Decimal, manualDiscount *decimal.Decimal) (Summary, error) {
	if qty.Sign() <= 0 {
		return Summary{}, common.Validation("quantity must be positive")
	}
	if manualDiscount != nil && manualDiscount.IsNegative() {
		return Summary{}, common.Validation("manual discount must not be negative")
	}
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireMutable(o); err != nil {
			return err
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.Active {
			return common.BusinessRule("product is not active")
		}

		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		var line *LineItem
		for i := range items {
			if items[i].ProductID == productID {
				line = &items[i]
				break
			}
		}
		if line == nil {
			li := LineItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: productID,
				UnitPrice: product.UnitPrice,
				Qty:       qty,
				Discount:  decimal.Zero,
				TaxAmount: decimal.Zero,
			}
			li.LineTotal = li.Amount()
			if err := tx.CreateItem(ctx, li); err != nil {
				return err
			}
		} else {
			line.Qty = line.Qty.Add(qty)
			if err := tx.UpdateItem(ctx, *line); err != nil {
				return err
			}
		}
		if manualDiscount != nil {
			if err := e.pinManualDiscount(ctx, tx, orderID, productID, *manualDiscount); err != nil {
				return err
			}
		}
		out, err = e.reprice(ctx, tx, o)
		return err
	})
	return out, err
}

// UpdateItemQuantity applies a signed delta to the product's line. A
// resulting quantity of zero or less removes the line entirely. Offers are
// re-resolved unless the line carries a manual discount.
func (e *Engine) UpdateItemQuantity(ctx context.Context, orderID, productID uuid.UUID, delta decimal.Decimal) (Summary, error) {
	if delta.IsZero() {
		return Summary{}, common.Validation("delta must not be zero")
	}
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireMutable(o); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		var line *LineItem
		for i := range items {
			if items[i].ProductID == productID {
				line = &items[i]
				break
			}
		}
		if line == nil {
			return common.NotFound("line item not found for product")
		}
		newQty := line.Qty.Add(delta)
		if newQty.Sign() <= 0 {
			if err := tx.DeleteItem(ctx, line.ID); err != nil {
				return err
			}
		} else {
			line.Qty = newQty
			if err := tx.UpdateItem(ctx, *line); err != nil {
				return err
			}
		}
		out, err = e.reprice(ctx, tx, o)
		return err
	})
	return out, err
}

// RemoveItem deletes one line and recalculates the order.
func (e *Engine) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (Summary, error) {
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireMutable(o); err != nil {
			return err
		}
		li, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if li.OrderID != orderID {
			return common.NotFound("line item not found on order")
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		out, err = e.reprice(ctx, tx, o)
		return err
	})
	return out, err
}

// ApplyDiscount sets an explicit order-level discount, either a fixed amount
// or a percentage of the subtotal. The explicit value wins over automatic
// ORDER-offer resolution until the next item mutation re-triggers it.
func (e *Engine) ApplyDiscount(ctx context.Context, orderID uuid.UUID, amount, percentage *decimal.Decimal) (Summary, error) {
	if (amount == nil) == (percentage == nil) {
		return Summary{}, common.Validation("exactly one of amount or percentage is required")
	}
	if amount != nil && amount.IsNegative() {
		return Summary{}, common.Validation("discount amount must not be negative")
	}
	if percentage != nil && (percentage.IsNegative() || percentage.GreaterThan(decimal.NewFromInt(100))) {
		return Summary{}, common.Validation("discount percentage must be within [0, 100]")
	}
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireMutable(o); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		subtotal := sumLineTotals(items)
		var discount decimal.Decimal
		if amount != nil {
			discount = money.Round2(*amount)
		} else {
			discount = money.Percent(subtotal, *percentage)
		}
		o.DiscountAmount = money.Cap(discount, subtotal)
		o.ManualDiscount = true
		o.AppliedOfferID = nil
		e.writeTotals(&o, subtotal)
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = Summary{Order: o, Items: items}
		return nil
	})
	return out, err
}

// Hold parks a draft order.
func (e *Engine) Hold(ctx context.Context, orderID uuid.UUID) (Summary, error) {
	return e.transition(ctx, orderID, StatusDraft, StatusHeld)
}

// Retrieve brings a held order back to draft.
func (e *Engine) Retrieve(ctx context.Context, orderID uuid.UUID) (Summary, error) {
	return e.transition(ctx, orderID, StatusHeld, StatusDraft)
}

func (e *Engine) transition(ctx context.Context, orderID uuid.UUID, from, to Status) (Summary, error) {
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != from {
			return common.BusinessRule("order is not in status " + string(from))
		}
		o.Status = to
		o.UpdatedAt = e.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		out = Summary{Order: o, Items: items}
		return nil
	})
	return out, err
}

// Void deletes a draft or held order together with its lines. Paid orders
// cannot be voided, only returned.
func (e *Engine) Void(ctx context.Context, orderID uuid.UUID) error {
	return e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Mutable() {
			return common.BusinessRule("only draft or held orders can be voided")
		}
		return tx.DeleteOrder(ctx, orderID)
	})
}

// VoidHeld deletes the order only when it is still HELD. It reports false
// without error when the order is gone or has moved on, so the expiry sweep
// can lose races with the register gracefully.
func (e *Engine) VoidHeld(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var voided bool
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if app, ok := common.AsAppError(err); ok && app.Code == common.CodeNotFound {
				return nil
			}
			return err
		}
		if o.Status != StatusHeld {
			return nil
		}
		voided = true
		return tx.DeleteOrder(ctx, orderID)
	})
	return voided, err
}

// pinManualDiscount replaces any offer-derived discount on the product's line
// with the supplied amount and clears the applied offer.
func (e *Engine) pinManualDiscount(ctx context.Context, tx Tx, orderID, productID uuid.UUID, manual decimal.Decimal) error {
	items, err := tx.ListItems(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		li := items[i]
		li.Discount = money.Cap(money.Round2(manual), li.Amount())
		li.ManualDiscount = true
		li.AppliedOfferID = nil
		return tx.UpdateItem(ctx, li)
	}
	return common.NotFound("line item not found for product")
}

// reprice re-resolves line-level offers, rewrites line totals and
// recalculates order totals. It is the single recompute pass every item
// mutation funnels through, and it is idempotent: running it twice without an
// intervening mutation yields identical totals.
func (e *Engine) reprice(ctx context.Context, tx Tx, o Order) (Summary, error) {
	items, err := tx.ListItems(ctx, o.ID)
	if err != nil {
		return Summary{}, err
	}
	now := e.now()
	set, err := e.loadOffers(ctx, tx, now)
	if err != nil {
		return Summary{}, err
	}

	lines := make([]offer.Line, 0, len(items))
	for _, li := range items {
		product, err := tx.GetProduct(ctx, li.ProductID)
		if err != nil {
			return Summary{}, err
		}
		lines = append(lines, offer.Line{
			ItemID:      li.ID,
			ProductID:   li.ProductID,
			CategoryIDs: product.CategoryIDs,
			UnitPrice:   li.UnitPrice,
			Qty:         li.Qty,
			Pinned:      li.ManualDiscount,
		})
	}
	resolved := offer.ResolveLines(lines, set)

	for i := range items {
		li := &items[i]
		if !li.ManualDiscount {
			if r, ok := resolved[li.ID]; ok {
				offerID := r.OfferID
				li.Discount = r.Discount
				li.AppliedOfferID = &offerID
			} else {
				li.Discount = decimal.Zero
				li.AppliedOfferID = nil
			}
		}
		amount := li.Amount()
		li.Discount = money.Cap(li.Discount, amount)
		li.LineTotal = amount.Sub(li.Discount).Add(li.TaxAmount)
		if err := tx.UpdateItem(ctx, *li); err != nil {
			return Summary{}, err
		}
	}

	subtotal := sumLineTotals(items)
	// an item mutation is an automatic trigger: it supersedes a previously
	// applied explicit order discount.
	o.ManualDiscount = false
	if d, offerID, ok := offer.ResolveOrder(subtotal, set.Orders); ok {
		o.DiscountAmount = d
		o.AppliedOfferID = &offerID
	} else {
		o.DiscountAmount = decimal.Zero
		o.AppliedOfferID = nil
	}
	e.writeTotals(&o, subtotal)
	o.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return Summary{}, err
	}
	return Summary{Order: o, Items: items}, nil
}

// writeTotals recomputes the order-level aggregates from the subtotal and the
// current discount: taxable = max(0, subtotal − discount), tax = taxable ×
// rate, grand total = taxable + tax.
func (e *Engine) writeTotals(o *Order, subtotal decimal.Decimal) {
	o.Subtotal = subtotal
	o.DiscountAmount = money.Cap(o.DiscountAmount, subtotal)
	taxable := money.ClampZero(subtotal.Sub(o.DiscountAmount))
	o.TaxAmount = money.Rate(taxable, e.TaxRatePercent)
	o.GrandTotal = taxable.Add(o.TaxAmount)
}

func (e *Engine) loadOffers(ctx context.Context, tx Tx, now time.Time) (offer.Set, error) {
	var set offer.Set
	var err error
	if set.Bundles, err = tx.ActiveOffers(ctx, offer.TypeBundle, now); err != nil {
		return offer.Set{}, err
	}
	if set.Products, err = tx.ActiveOffers(ctx, offer.TypeProduct, now); err != nil {
		return offer.Set{}, err
	}
	if set.Categories, err = tx.ActiveOffers(ctx, offer.TypeCategory, now); err != nil {
		return offer.Set{}, err
	}
	if set.Orders, err = tx.ActiveOffers(ctx, offer.TypeOrder, now); err != nil {
		return offer.Set{}, err
	}
	return set, nil
}

func sumLineTotals(items []LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.LineTotal)
	}
	return subtotal
}

// Recalculate re-derives order totals from the current lines without touching
// them. Exposed for consistency checks; calling it twice in a row yields
// identical totals.
func (e *Engine) Recalculate(ctx context.Context, orderID uuid.UUID) (Summary, error) {
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		e.writeTotals(&o, sumLineTotals(items))
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = Summary{Order: o, Items: items}
		return nil
	})
	return out, err
}
