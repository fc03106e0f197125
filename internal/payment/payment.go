// Package payment records sale and refund payments. The record is
// append-only: payments are never updated or deleted.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/money"
	"github.com/noah-isme/kasir-api/internal/order"
)

// Method is the tender type of one payment record. SPLIT is a request-level
// construct only; it is stored as separate CASH and CARD records.
type Method string

const (
	MethodCash  Method = "CASH"
	MethodCard  Method = "CARD"
	MethodSplit Method = "SPLIT"
)

// Kind tags a payment as part of a sale or a refund.
type Kind string

const (
	KindSale   Kind = "SALE"
	KindRefund Kind = "REFUND"
)

// Payment is one append-only tender record against an order.
type Payment struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Method    Method
	Kind      Kind
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Request is the tender breakdown for processing one order's payment.
// For CASH and CARD, Amount carries the full tender; for SPLIT, CashAmount
// and CardAmount carry the parts.
type Request struct {
	Method     Method
	Amount     decimal.Decimal
	CashAmount decimal.Decimal
	CardAmount decimal.Decimal
}

// Tx is the persistence surface one payment unit of work needs.
type Tx interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) error
	CreatePayment(ctx context.Context, p Payment) error
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
}

// Store opens payment units of work.
type Store interface {
	Within(ctx context.Context, fn func(tx Tx) error) error
}

// Service processes order payments.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Process records the sale payment(s) for a draft order and marks it PAID.
// Tendered amounts must equal the grand total exactly; held orders must be
// retrieved back to draft first.
func (s *Service) Process(ctx context.Context, orderID uuid.UUID, req Request) (order.Order, error) {
	if s == nil || s.Store == nil {
		return order.Order{}, errors.New("payment service not configured")
	}
	var out order.Order
	err := s.Store.Within(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusDraft {
			return common.BusinessRule("only draft orders can be paid")
		}
		records, err := tenders(orderID, req, o.GrandTotal)
		if err != nil {
			return err
		}
		now := s.now()
		for _, p := range records {
			p.CreatedAt = now
			if err := tx.CreatePayment(ctx, p); err != nil {
				return err
			}
		}
		o.Status = order.StatusPaid
		o.PaidAt = &now
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// tenders validates the request against the grand total and expands it into
// the payment records to persist.
func tenders(orderID uuid.UUID, req Request, grandTotal decimal.Decimal) ([]Payment, error) {
	switch req.Method {
	case MethodCash, MethodCard:
		amount := money.Round2(req.Amount)
		if !amount.Equal(grandTotal) {
			return nil, common.BusinessRule("payment amount must equal the grand total")
		}
		return []Payment{{
			ID:      uuid.New(),
			OrderID: orderID,
			Method:  req.Method,
			Kind:    KindSale,
			Amount:  amount,
		}}, nil
	case MethodSplit:
		cash := money.Round2(req.CashAmount)
		card := money.Round2(req.CardAmount)
		if cash.IsNegative() || card.IsNegative() {
			return nil, common.Validation("split amounts must not be negative")
		}
		if !cash.Add(card).Equal(grandTotal) {
			return nil, common.BusinessRule("split amounts must sum to the grand total")
		}
		var out []Payment
		if cash.Sign() > 0 {
			out = append(out, Payment{ID: uuid.New(), OrderID: orderID, Method: MethodCash, Kind: KindSale, Amount: cash})
		}
		if card.Sign() > 0 {
			out = append(out, Payment{ID: uuid.New(), OrderID: orderID, Method: MethodCard, Kind: KindSale, Amount: card})
		}
		if len(out) == 0 {
			return nil, common.BusinessRule("payment amount must equal the grand total")
		}
		return out, nil
	default:
		return nil, common.Validation("unknown payment method")
	}
}
