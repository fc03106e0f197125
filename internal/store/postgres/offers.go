package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/offer"
)

var _ offer.AdminStore = (*OfferStore)(nil)

// OfferStore implements offer.AdminStore on the pool.
type OfferStore struct {
	Pool *pgxpool.Pool
}

func (s *OfferStore) CreateOffer(ctx context.Context, o offer.Offer) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO offers (id, code, type, kind, value, start_at, end_at, active, min_order_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Code, o.Type, o.Kind, o.Value,
		zeroTimeToNull(o.StartAt), zeroTimeToNull(o.EndAt), o.Active, o.MinOrderAmount)
	if err != nil {
		if isUniqueViolation(err) {
			return common.BusinessRule("offer code already exists")
		}
		return err
	}
	for _, pid := range o.ProductIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offer_products (offer_id, product_id) VALUES ($1, $2)`, o.ID, pid); err != nil {
			return err
		}
	}
	for _, cid := range o.CategoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offer_categories (offer_id, category_id) VALUES ($1, $2)`, o.ID, cid); err != nil {
			return err
		}
	}
	for _, bi := range o.BundleItems {
		if _, err := tx.Exec(ctx, `INSERT INTO offer_bundle_items (offer_id, product_id, required_qty) VALUES ($1, $2, $3)`,
			o.ID, bi.ProductID, bi.RequiredQty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *OfferStore) ListOffers(ctx context.Context) ([]offer.Offer, error) {
	return loadOffers(ctx, s.Pool, `SELECT `+offerColumns+` FROM offers ORDER BY code`)
}

func (s *OfferStore) GetOffer(ctx context.Context, id uuid.UUID) (offer.Offer, error) {
	offers, err := loadOffers(ctx, s.Pool, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	if err != nil {
		return offer.Offer{}, err
	}
	if len(offers) == 0 {
		return offer.Offer{}, notFoundErr("offer")
	}
	return offers[0], nil
}

func (s *OfferStore) UpdateOffer(ctx context.Context, o offer.Offer) error {
	// only the flag is mutable after creation; targets and value are frozen
	tag, err := s.Pool.Exec(ctx, `UPDATE offers SET active = $2 WHERE id = $1`, o.ID, o.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("offer")
	}
	return nil
}

func (t *txn) ActiveOffers(ctx context.Context, typ offer.Type, now time.Time) ([]offer.Offer, error) {
	return loadOffers(ctx, t.tx, `
		SELECT `+offerColumns+` FROM offers
		WHERE type = $1 AND active
		  AND (start_at IS NULL OR start_at <= $2)
		  AND (end_at IS NULL OR end_at >= $2)
		ORDER BY id`, typ, now)
}

const offerColumns = `id, code, type, kind, value, start_at, end_at, active, min_order_amount`

func zeroTimeToNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func loadOffers(ctx context.Context, q querier, sql string, args ...any) ([]offer.Offer, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	offers := []offer.Offer{}
	for rows.Next() {
		var (
			o              offer.Offer
			startAt, endAt *time.Time
		)
		if err := rows.Scan(&o.ID, &o.Code, &o.Type, &o.Kind, &o.Value, &startAt, &endAt, &o.Active, &o.MinOrderAmount); err != nil {
			return nil, err
		}
		if startAt != nil {
			o.StartAt = *startAt
		}
		if endAt != nil {
			o.EndAt = *endAt
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range offers {
		if err := loadOfferTargets(ctx, q, &offers[i]); err != nil {
			return nil, err
		}
	}
	return offers, nil
}

func loadOfferTargets(ctx context.Context, q querier, o *offer.Offer) error {
	switch o.Type {
	case offer.TypeProduct:
		rows, err := q.Query(ctx, `SELECT product_id FROM offer_products WHERE offer_id = $1 ORDER BY product_id`, o.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			o.ProductIDs = append(o.ProductIDs, id)
		}
		return rows.Err()
	case offer.TypeCategory:
		rows, err := q.Query(ctx, `SELECT category_id FROM offer_categories WHERE offer_id = $1 ORDER BY category_id`, o.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			o.CategoryIDs = append(o.CategoryIDs, id)
		}
		return rows.Err()
	case offer.TypeBundle:
		rows, err := q.Query(ctx, `SELECT product_id, required_qty FROM offer_bundle_items WHERE offer_id = $1 ORDER BY product_id`, o.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var bi offer.BundleItem
			if err := rows.Scan(&bi.ProductID, &bi.RequiredQty); err != nil {
				return err
			}
			o.BundleItems = append(o.BundleItems, bi)
		}
		return rows.Err()
	}
	return nil
}
