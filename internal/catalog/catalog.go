// Package catalog exposes the product lookup surface the pricing engine
// depends on. Products freeze their unit price into order lines at add time.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view of a sellable item.
type Product struct {
	ID          uuid.UUID
	SKU         string
	Name        string
	UnitPrice   decimal.Decimal
	Active      bool
	CategoryIDs []uuid.UUID
}

// Store provides read access to the product catalog.
type Store interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
}
