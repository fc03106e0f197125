// Package offer implements promotional offers: the discount calculator and
// the resolution strategies that pick the best applicable offer per line item
// or per order under the Bundle > Product > Category > Order priority.
package offer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/common"
)

// Type classifies what an offer targets.
type Type string

const (
	TypeProduct  Type = "PRODUCT"
	TypeCategory Type = "CATEGORY"
	TypeOrder    Type = "ORDER"
	TypeBundle   Type = "BUNDLE"
)

// DiscountKind describes how the discount value is interpreted.
type DiscountKind string

const (
	KindPercentage  DiscountKind = "PERCENTAGE"
	KindFixedAmount DiscountKind = "FIXED_AMOUNT"
)

// BundleItem is one required (product, quantity) pair of a bundle offer.
type BundleItem struct {
	ProductID   uuid.UUID
	RequiredQty decimal.Decimal
}

// Offer is a promotional rule with a validity window and type-specific targets.
type Offer struct {
	ID      uuid.UUID
	Code    string
	Type    Type
	Kind    DiscountKind
	Value   decimal.Decimal
	StartAt time.Time
	EndAt   time.Time
	Active  bool

	ProductIDs     []uuid.UUID     // TypeProduct
	CategoryIDs    []uuid.UUID     // TypeCategory
	MinOrderAmount decimal.Decimal // TypeOrder
	BundleItems    []BundleItem    // TypeBundle
}

// ApplicableAt reports whether the offer may be applied at the given instant.
// A zero EndAt means the offer is open-ended.
func (o Offer) ApplicableAt(now time.Time) bool {
	if !o.Active || now.Before(o.StartAt) {
		return false
	}
	return o.EndAt.IsZero() || !now.After(o.EndAt)
}

// Validate enforces the creation-time invariants for an offer definition.
func (o Offer) Validate() error {
	if o.Code == "" {
		return common.Validation("offer code is required")
	}
	switch o.Type {
	case TypeProduct, TypeCategory, TypeOrder, TypeBundle:
	default:
		return common.Validation("unknown offer type")
	}
	switch o.Kind {
	case KindPercentage:
		if o.Value.Sign() <= 0 || o.Value.GreaterThan(decimal.NewFromInt(100)) {
			return common.Validation("percentage value must be in (0, 100]")
		}
	case KindFixedAmount:
		if o.Value.Sign() <= 0 {
			return common.Validation("fixed amount value must be positive")
		}
	default:
		return common.Validation("unknown discount kind")
	}
	if !o.EndAt.IsZero() && o.EndAt.Before(o.StartAt) {
		return common.Validation("offer window end precedes start")
	}
	switch o.Type {
	case TypeProduct:
		if len(o.ProductIDs) == 0 {
			return common.Validation("product offer requires at least one product")
		}
	case TypeCategory:
		if len(o.CategoryIDs) == 0 {
			return common.Validation("category offer requires at least one category")
		}
	case TypeOrder:
		if o.MinOrderAmount.IsNegative() {
			return common.Validation("minimum order amount must not be negative")
		}
	case TypeBundle:
		distinct := map[uuid.UUID]struct{}{}
		for _, bi := range o.BundleItems {
			if bi.RequiredQty.Sign() <= 0 {
				return common.Validation("bundle required quantity must be positive")
			}
			distinct[bi.ProductID] = struct{}{}
		}
		if len(distinct) < 2 {
			return common.BusinessRule("bundle offer requires at least two distinct products")
		}
	}
	return nil
}
