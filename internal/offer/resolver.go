package offer

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/internal/money"
)

// Line is the pricing view of one order line handed to the resolver.
type Line struct {
	ItemID      uuid.UUID
	ProductID   uuid.UUID
	CategoryIDs []uuid.UUID
	UnitPrice   decimal.Decimal
	Qty         decimal.Decimal
	// Pinned lines carry a manually set discount and are excluded from
	// resolution, including bundle matching.
	Pinned bool
}

func (l Line) amount() decimal.Decimal {
	return money.Round2(l.UnitPrice.Mul(l.Qty))
}

// LineResolution is the outcome of line-level resolution for one item.
type LineResolution struct {
	Discount decimal.Decimal
	OfferID  uuid.UUID
}

// Set groups the active offers available for one resolution pass, already
// filtered by validity window.
type Set struct {
	Bundles    []Offer
	Products   []Offer
	Categories []Offer
	Orders     []Offer
}

// ResolveLines applies the line-level strategies in priority order:
// the best satisfied bundle first, then per-line product offers, then
// category offers for lines no product offer matched. Lines consumed by the
// winning bundle are excluded from product and category resolution.
// The returned map is keyed by line item id; absent keys mean no discount.
func ResolveLines(lines []Line, set Set) map[uuid.UUID]LineResolution {
	out := make(map[uuid.UUID]LineResolution, len(lines))

	consumed := resolveBundle(lines, set.Bundles, out)

	for _, ln := range lines {
		if ln.Pinned || consumed[ln.ProductID] {
			continue
		}
		if res, ok := bestLineOffer(ln, set.Products, matchesProduct); ok {
			out[ln.ItemID] = res
			continue
		}
		if res, ok := bestLineOffer(ln, set.Categories, matchesCategory); ok {
			out[ln.ItemID] = res
		}
	}
	return out
}

// ResolveOrder picks the order-level offer yielding the largest discount on
// the subtotal among offers whose minimum order amount is met. At most one
// order-level offer is active per order; reapplication replaces, not stacks.
func ResolveOrder(subtotal decimal.Decimal, offers []Offer) (decimal.Decimal, uuid.UUID, bool) {
	var (
		best   decimal.Decimal
		bestID uuid.UUID
		found  bool
	)
	for _, o := range offers {
		if o.Type != TypeOrder || subtotal.LessThan(o.MinOrderAmount) {
			continue
		}
		d := Discount(o, subtotal)
		if d.Sign() <= 0 {
			continue
		}
		if beats(d, o.ID, best, bestID, found) {
			best, bestID, found = d, o.ID, true
		}
	}
	return best, bestID, found
}

// resolveBundle finds the satisfied bundle with the highest discount,
// distributes it proportionally across the bundle's lines and reports which
// products the bundle consumed.
func resolveBundle(lines []Line, bundles []Offer, out map[uuid.UUID]LineResolution) map[uuid.UUID]bool {
	// one line per product: quantities are merged at the order level, so the
	// first unpinned line for a product carries its full quantity.
	byProduct := make(map[uuid.UUID]Line, len(lines))
	for _, ln := range lines {
		if ln.Pinned {
			continue
		}
		if _, ok := byProduct[ln.ProductID]; !ok {
			byProduct[ln.ProductID] = ln
		}
	}

	var (
		best      decimal.Decimal
		bestOffer Offer
		found     bool
	)
	for _, b := range bundles {
		if b.Type != TypeBundle {
			continue
		}
		total, ok := bundleTotal(b, byProduct)
		if !ok {
			continue
		}
		d := Discount(b, total)
		if d.Sign() <= 0 {
			continue
		}
		if beats(d, b.ID, best, bestOffer.ID, found) {
			best, bestOffer, found = d, b, true
		}
	}
	if !found {
		return nil
	}

	total, _ := bundleTotal(bestOffer, byProduct)
	consumed := make(map[uuid.UUID]bool, len(bestOffer.BundleItems))
	shares := distribute(best, total, bestOffer.BundleItems, byProduct)
	for pid, share := range shares {
		ln := byProduct[pid]
		out[ln.ItemID] = LineResolution{Discount: share, OfferID: bestOffer.ID}
		consumed[pid] = true
	}
	return consumed
}

// bundleTotal sums unitPrice×requiredQty over the bundle's items, using only
// the required quantities. It reports false when any requirement is not
// present with sufficient quantity.
func bundleTotal(b Offer, byProduct map[uuid.UUID]Line) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, bi := range b.BundleItems {
		ln, ok := byProduct[bi.ProductID]
		if !ok || ln.Qty.LessThan(bi.RequiredQty) {
			return decimal.Zero, false
		}
		total = total.Add(ln.UnitPrice.Mul(bi.RequiredQty))
	}
	return total, true
}

// distribute splits totalDiscount across bundle items proportionally to each
// item's contribution, rounding each share half-up to two decimals. Any
// rounding remainder is assigned to the item with the largest contribution
// (lowest product id on ties) so the shares reconcile to the cent.
func distribute(totalDiscount, total decimal.Decimal, items []BundleItem, byProduct map[uuid.UUID]Line) map[uuid.UUID]decimal.Decimal {
	shares := make(map[uuid.UUID]decimal.Decimal, len(items))
	if total.Sign() <= 0 {
		return shares
	}
	var (
		sum        decimal.Decimal
		largest    decimal.Decimal
		largestPID uuid.UUID
	)
	for i, bi := range items {
		ln := byProduct[bi.ProductID]
		contrib := ln.UnitPrice.Mul(bi.RequiredQty)
		share := money.Round2(totalDiscount.Mul(contrib).Div(total))
		shares[bi.ProductID] = share
		sum = sum.Add(share)
		if i == 0 || contrib.GreaterThan(largest) ||
			(contrib.Equal(largest) && bi.ProductID.String() < largestPID.String()) {
			largest, largestPID = contrib, bi.ProductID
		}
	}
	if rem := totalDiscount.Sub(sum); !rem.IsZero() {
		shares[largestPID] = shares[largestPID].Add(rem)
	}
	return shares
}

func bestLineOffer(ln Line, offers []Offer, match func(Offer, Line) bool) (LineResolution, bool) {
	var (
		best   decimal.Decimal
		bestID uuid.UUID
		found  bool
	)
	base := ln.amount()
	for _, o := range offers {
		if !match(o, ln) {
			continue
		}
		d := Discount(o, base)
		if d.Sign() <= 0 {
			continue
		}
		if beats(d, o.ID, best, bestID, found) {
			best, bestID, found = d, o.ID, true
		}
	}
	return LineResolution{Discount: best, OfferID: bestID}, found
}

func matchesProduct(o Offer, ln Line) bool {
	if o.Type != TypeProduct {
		return false
	}
	for _, id := range o.ProductIDs {
		if id == ln.ProductID {
			return true
		}
	}
	return false
}

func matchesCategory(o Offer, ln Line) bool {
	if o.Type != TypeCategory {
		return false
	}
	for _, cid := range o.CategoryIDs {
		for _, lc := range ln.CategoryIDs {
			if cid == lc {
				return true
			}
		}
	}
	return false
}

// beats implements "larger discount wins", with the lowest offer id as the
// deterministic tie-break.
func beats(d decimal.Decimal, id uuid.UUID, cur decimal.Decimal, curID uuid.UUID, found bool) bool {
	if !found {
		return true
	}
	if d.GreaterThan(cur) {
		return true
	}
	return d.Equal(cur) && id.String() < curID.String()
}
