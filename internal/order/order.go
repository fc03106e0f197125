// Package order holds the order aggregate and the pricing engine that keeps
// its totals consistent through every item mutation.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/catalog"
	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/offer"
	"github.com/noah-isme/kasir-api/internal/session"
)

// Status enumerates the order lifecycle.
// DRAFT ⇄ HELD, DRAFT → PAID → PARTIALLY_RETURNED → RETURNED.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusHeld              Status = "HELD"
	StatusPaid              Status = "PAID"
	StatusPartiallyReturned Status = "PARTIALLY_RETURNED"
	StatusReturned          Status = "RETURNED"
)

// LineItem is one product line within an order. UnitPrice is frozen from the
// catalog when the line is created. Invariant:
// LineTotal = round2(UnitPrice·Qty) − Discount + TaxAmount, Discount ≤ round2(UnitPrice·Qty).
type LineItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	UnitPrice      decimal.Decimal
	Qty            decimal.Decimal
	Discount       decimal.Decimal
	AppliedOfferID *uuid.UUID
	ManualDiscount bool
	TaxAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

// Amount is the undiscounted line amount.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(li.Qty).Round(2)
}

// Order is the pricing aggregate. Invariant:
// GrandTotal = max(0, Subtotal − DiscountAmount) + TaxAmount.
type Order struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Status         Status
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	AppliedOfferID *uuid.UUID
	ManualDiscount bool
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
	ParentOrderID  *uuid.UUID
	CustomerID     *uuid.UUID
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Mutable reports whether pricing mutations are allowed in the current state.
func (o Order) Mutable() bool {
	return o.Status == StatusDraft || o.Status == StatusHeld
}

func requireMutable(o Order) error {
	if !o.Mutable() {
		return common.BusinessRule("order is not mutable in status " + string(o.Status))
	}
	return nil
}

// Summary is the engine's view of an order with its lines, returned by every
// public operation.
type Summary struct {
	Order Order
	Items []LineItem
}

// Tx is the set of persistence operations one pricing unit of work needs.
// Implementations must scope every call to a single transaction; GetOrderForUpdate
// takes the per-order lock that serialises concurrent mutations.
type Tx interface {
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	CreateOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, orderID uuid.UUID) ([]LineItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (LineItem, error)
	CreateItem(ctx context.Context, li LineItem) error
	UpdateItem(ctx context.Context, li LineItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	ActiveOffers(ctx context.Context, typ offer.Type, now time.Time) ([]offer.Offer, error)
	GetSession(ctx context.Context, id uuid.UUID) (session.Session, error)
}

// Store opens pricing units of work. The callback either commits as a whole
// or leaves persisted state untouched.
type Store interface {
	Within(ctx context.Context, fn func(tx Tx) error) error
}
