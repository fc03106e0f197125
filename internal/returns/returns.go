// Package returns computes refunds from frozen line snapshots and produces
// the linked return order. Refund economics derive from the as-sold line
// total, never from the current catalog price.
package returns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/money"
	"github.com/noah-isme/kasir-api/internal/order"
	"github.com/noah-isme/kasir-api/internal/payment"
	"github.com/noah-isme/kasir-api/internal/session"
)

// Item is one immutable return line, referencing the original order's line
// item. Across all Items referencing the same original line,
// Σ ReturnedQty never exceeds the original quantity.
type Item struct {
	ID             uuid.UUID
	ReturnOrderID  uuid.UUID
	OriginalItemID uuid.UUID
	ReturnedQty    decimal.Decimal
	RefundAmount   decimal.Decimal
	CreatedAt      time.Time
}

// ItemRequest asks to return a quantity of one original line item.
type ItemRequest struct {
	OriginalItemID uuid.UUID
	ReturnedQty    decimal.Decimal
}

// Refund is one tender of the refund payment breakdown.
type Refund struct {
	Method payment.Method
	Amount decimal.Decimal
}

// Request is the full createReturn input.
type Request struct {
	OriginalOrderID uuid.UUID
	SessionID       uuid.UUID
	Items           []ItemRequest
	Refunds         []Refund
}

// Summary is the outcome of a successful return.
type Summary struct {
	ReturnOrderID uuid.UUID
	TotalRefund   decimal.Decimal
	Items         []Item
	Refunds       []Refund
}

// Tx is the persistence surface one return unit of work needs. The
// GetOrderForUpdate lock covers the already-returned read and the return
// item inserts, so concurrent returns on the same order cannot over-return.
type Tx interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error)
	CreateOrder(ctx context.Context, o order.Order) error
	UpdateOrder(ctx context.Context, o order.Order) error
	ListItems(ctx context.Context, orderID uuid.UUID) ([]order.LineItem, error)
	// ReturnedQtyByItem sums prior returned quantities per original line item
	// across every return order linked to the given original order.
	ReturnedQtyByItem(ctx context.Context, originalOrderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	CreateReturnItem(ctx context.Context, it Item) error
	CreatePayment(ctx context.Context, p payment.Payment) error
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
}

// Store opens return units of work.
type Store interface {
	Within(ctx context.Context, fn func(tx Tx) error) error
}

// Engine creates returns against paid orders.
type Engine struct {
	Store      Store
	WindowDays int
	Now        func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Create validates the requested return against the original order's frozen
// lines, computes the refund, and persists the return order, its items and
// the refund payments in one unit of work. Any failure leaves no write
// behind.
func (e *Engine) Create(ctx context.Context, req Request) (Summary, error) {
	if e == nil || e.Store == nil {
		return Summary{}, errors.New("return engine not configured")
	}
	if len(req.Items) == 0 {
		return Summary{}, common.Validation("at least one return item is required")
	}
	if len(req.Refunds) == 0 {
		return Summary{}, common.Validation("at least one refund tender is required")
	}
	var out Summary
	err := e.Store.Within(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if err := session.RequireOpen(sess); err != nil {
			return err
		}
		orig, err := tx.GetOrderForUpdate(ctx, req.OriginalOrderID)
		if err != nil {
			return err
		}
		if orig.Status != order.StatusPaid && orig.Status != order.StatusPartiallyReturned {
			return common.BusinessRule("order is not returnable in status " + string(orig.Status))
		}
		if orig.PaidAt == nil {
			return common.BusinessRule("order has no recorded payment time")
		}
		now := e.now()
		if now.After(orig.PaidAt.AddDate(0, 0, e.WindowDays)) {
			return common.BusinessRule("return window has expired")
		}

		lines, err := tx.ListItems(ctx, orig.ID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]order.LineItem, len(lines))
		for _, li := range lines {
			byID[li.ID] = li
		}
		returned, err := tx.ReturnedQtyByItem(ctx, orig.ID)
		if err != nil {
			return err
		}
		if returned == nil {
			returned = map[uuid.UUID]decimal.Decimal{}
		}

		returnOrderID := uuid.New()
		totalRefund := decimal.Zero
		items := make([]Item, 0, len(req.Items))
		for _, ir := range req.Items {
			if ir.ReturnedQty.Sign() <= 0 {
				return common.Validation("returned quantity must be positive")
			}
			li, ok := byID[ir.OriginalItemID]
			if !ok {
				return common.NotFound("line item not found on original order")
			}
			already := returned[li.ID]
			remaining := li.Qty.Sub(already)
			if ir.ReturnedQty.GreaterThan(remaining) {
				return common.BusinessRule("returned quantity exceeds remaining quantity")
			}
			returned[li.ID] = already.Add(ir.ReturnedQty)

			netUnit := money.UnitShare(li.LineTotal, li.Qty)
			refund := money.Round2(netUnit.Mul(ir.ReturnedQty))
			totalRefund = totalRefund.Add(refund)
			items = append(items, Item{
				ID:             uuid.New(),
				ReturnOrderID:  returnOrderID,
				OriginalItemID: li.ID,
				ReturnedQty:    ir.ReturnedQty,
				RefundAmount:   refund,
				CreatedAt:      now,
			})
		}

		tenderSum := decimal.Zero
		for _, r := range req.Refunds {
			if r.Method != payment.MethodCash && r.Method != payment.MethodCard {
				return common.Validation("refund method must be CASH or CARD")
			}
			if r.Amount.Sign() <= 0 {
				return common.Validation("refund amount must be positive")
			}
			tenderSum = tenderSum.Add(money.Round2(r.Amount))
		}
		if !tenderSum.Equal(totalRefund) {
			return common.BusinessRule("refund amounts must sum to the total refund")
		}

		ret := order.Order{
			ID:             returnOrderID,
			SessionID:      req.SessionID,
			Status:         order.StatusReturned,
			Subtotal:       totalRefund,
			DiscountAmount: decimal.Zero,
			TaxAmount:      decimal.Zero,
			GrandTotal:     totalRefund,
			ParentOrderID:  &orig.ID,
			CustomerID:     orig.CustomerID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateOrder(ctx, ret); err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.CreateReturnItem(ctx, it); err != nil {
				return err
			}
		}
		for _, r := range req.Refunds {
			p := payment.Payment{
				ID:        uuid.New(),
				OrderID:   returnOrderID,
				Method:    r.Method,
				Kind:      payment.KindRefund,
				Amount:    money.Round2(r.Amount),
				CreatedAt: now,
			}
			if err := tx.CreatePayment(ctx, p); err != nil {
				return err
			}
		}

		orig.Status = derivedStatus(lines, returned)
		orig.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, orig); err != nil {
			return err
		}

		out = Summary{
			ReturnOrderID: returnOrderID,
			TotalRefund:   totalRefund,
			Items:         items,
			Refunds:       req.Refunds,
		}
		return nil
	})
	return out, err
}

// derivedStatus flips the original order to RETURNED once every line's
// remaining quantity reaches zero, and to PARTIALLY_RETURNED otherwise.
func derivedStatus(lines []order.LineItem, returned map[uuid.UUID]decimal.Decimal) order.Status {
	for _, li := range lines {
		if li.Qty.GreaterThan(returned[li.ID]) {
			return order.StatusPartiallyReturned
		}
	}
	return order.StatusReturned
}
