package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/payment"
	"github.com/noah-isme/kasir-api/internal/returns"
)

func (t *txn) CreatePayment(ctx context.Context, p payment.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrderID, p.Method, p.Kind, p.Amount, p.CreatedAt)
	return err
}

func (t *txn) ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, method, kind, amount, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []payment.Payment{}
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Kind, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txn) ReturnedQtyByItem(ctx context.Context, originalOrderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ri.original_item_id, COALESCE(SUM(ri.returned_qty), 0)
		FROM return_items ri
		JOIN orders ro ON ro.id = ri.return_order_id
		WHERE ro.parent_order_id = $1
		GROUP BY ri.original_item_id`, originalOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[uuid.UUID]decimal.Decimal{}
	for rows.Next() {
		var (
			itemID uuid.UUID
			qty    decimal.Decimal
		)
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		out[itemID] = qty
	}
	return out, rows.Err()
}

func (t *txn) CreateReturnItem(ctx context.Context, it returns.Item) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO return_items (id, return_order_id, original_item_id, returned_qty, refund_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		it.ID, it.ReturnOrderID, it.OriginalItemID, it.ReturnedQty, it.RefundAmount, it.CreatedAt)
	return err
}
