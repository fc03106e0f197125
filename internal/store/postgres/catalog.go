package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kasir-api/internal/catalog"
)

var _ catalog.Store = (*CatalogStore)(nil)

// CatalogStore implements catalog.Store on the pool.
type CatalogStore struct {
	Pool *pgxpool.Pool
}

func (s *CatalogStore) ListProducts(ctx context.Context, activeOnly bool) ([]catalog.Product, error) {
	q := `SELECT id, sku, name, unit_price, active FROM products`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY sku`
	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range products {
		cats, err := productCategories(ctx, s.Pool, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].CategoryIDs = cats
	}
	return products, nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	return getProduct(ctx, s.Pool, id)
}

func (t *txn) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	return getProduct(ctx, t.tx, id)
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProduct(ctx context.Context, q querier, id uuid.UUID) (catalog.Product, error) {
	var p catalog.Product
	err := q.QueryRow(ctx, `SELECT id, sku, name, unit_price, active FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.Active)
	if err != nil {
		return catalog.Product{}, notFound(err, "product")
	}
	p.CategoryIDs, err = productCategories(ctx, q, id)
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func productCategories(ctx context.Context, q querier, productID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT category_id FROM product_categories WHERE product_id = $1 ORDER BY category_id`, productID)
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
