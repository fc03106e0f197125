package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-api/internal/obs"
)

// HeldLister lists held orders untouched since a cutoff.
type HeldLister interface {
	StaleHeldOrders(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// Sweeper voids held orders older than TTL. Each void runs in its own unit
// of work and only removes orders still HELD, so a race with a cashier
// retrieving the order is lost gracefully.
type Sweeper struct {
	Engine *Engine
	List   HeldLister
	TTL    time.Duration
	Log    zerolog.Logger
}

// Sweep voids every stale held order and reports how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.Engine.now().Add(-s.TTL)
	ids, err := s.List.StaleHeldOrders(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		voided, err := s.Engine.VoidHeld(ctx, id)
		if err != nil {
			s.Log.Warn().Err(err).Str("order_id", id.String()).Msg("skip held order")
			continue
		}
		if voided {
			swept++
		}
	}
	obs.CountSwept(swept)
	return swept, nil
}
