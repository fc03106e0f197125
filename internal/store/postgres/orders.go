package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/kasir-api/internal/order"
)

const orderColumns = `id, session_id, status, subtotal, discount_amount,
	applied_offer_id, manual_discount, tax_amount, grand_total,
	parent_order_id, customer_id, paid_at, created_at, updated_at`

func (t *txn) scanOrder(row interface{ Scan(dest ...any) error }) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.SessionID, &o.Status, &o.Subtotal, &o.DiscountAmount,
		&o.AppliedOfferID, &o.ManualDiscount, &o.TaxAmount, &o.GrandTotal,
		&o.ParentOrderID, &o.CustomerID, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (t *txn) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := t.scanOrder(row)
	if err != nil {
		return order.Order{}, notFound(err, "order")
	}
	return o, nil
}

func (t *txn) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := t.scanOrder(row)
	if err != nil {
		return order.Order{}, notFound(err, "order")
	}
	return o, nil
}

func (t *txn) CreateOrder(ctx context.Context, o order.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, session_id, status, subtotal, discount_amount,
			applied_offer_id, manual_discount, tax_amount, grand_total,
			parent_order_id, customer_id, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.SessionID, o.Status, o.Subtotal, o.DiscountAmount,
		o.AppliedOfferID, o.ManualDiscount, o.TaxAmount, o.GrandTotal,
		o.ParentOrderID, o.CustomerID, nullableTime(o.PaidAt), o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *txn) UpdateOrder(ctx context.Context, o order.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, subtotal = $3, discount_amount = $4,
			applied_offer_id = $5, manual_discount = $6, tax_amount = $7,
			grand_total = $8, paid_at = $9, updated_at = $10
		WHERE id = $1`,
		o.ID, o.Status, o.Subtotal, o.DiscountAmount,
		o.AppliedOfferID, o.ManualDiscount, o.TaxAmount,
		o.GrandTotal, nullableTime(o.PaidAt), o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("order")
	}
	return nil
}

// StaleHeldOrders lists HELD orders untouched since the cutoff. The worker
// voids them one by one, each under its own row lock.
func (d *DB) StaleHeldOrders(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := d.Pool.Query(ctx, `SELECT id FROM orders WHERE status = 'HELD' AND updated_at < $1 ORDER BY updated_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *txn) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	// order_items cascade on delete
	_, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

const itemColumns = `id, order_id, product_id, unit_price, qty, discount,
	applied_offer_id, manual_discount, tax_amount, line_total`

func scanItem(row interface{ Scan(dest ...any) error }) (order.LineItem, error) {
	var li order.LineItem
	err := row.Scan(
		&li.ID, &li.OrderID, &li.ProductID, &li.UnitPrice, &li.Qty, &li.Discount,
		&li.AppliedOfferID, &li.ManualDiscount, &li.TaxAmount, &li.LineTotal,
	)
	return li, err
}

func (t *txn) ListItems(ctx context.Context, orderID uuid.UUID) ([]order.LineItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []order.LineItem{}
	for rows.Next() {
		li, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (t *txn) GetItem(ctx context.Context, id uuid.UUID) (order.LineItem, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, id)
	li, err := scanItem(row)
	if err != nil {
		return order.LineItem{}, notFound(err, "line item")
	}
	return li, nil
}

func (t *txn) CreateItem(ctx context.Context, li order.LineItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, unit_price, qty,
			discount, applied_offer_id, manual_discount, tax_amount, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		li.ID, li.OrderID, li.ProductID, li.UnitPrice, li.Qty,
		li.Discount, li.AppliedOfferID, li.ManualDiscount, li.TaxAmount, li.LineTotal)
	return err
}

func (t *txn) UpdateItem(ctx context.Context, li order.LineItem) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE order_items SET qty = $2, discount = $3, applied_offer_id = $4,
			manual_discount = $5, tax_amount = $6, line_total = $7
		WHERE id = $1`,
		li.ID, li.Qty, li.Discount, li.AppliedOfferID,
		li.ManualDiscount, li.TaxAmount, li.LineTotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("line item")
	}
	return nil
}

func (t *txn) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	return err
}
