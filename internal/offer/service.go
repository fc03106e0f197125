package offer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AdminStore persists offers for the administration surface.
type AdminStore interface {
	CreateOffer(ctx context.Context, o Offer) error
	ListOffers(ctx context.Context) ([]Offer, error)
	GetOffer(ctx context.Context, id uuid.UUID) (Offer, error)
	UpdateOffer(ctx context.Context, o Offer) error
}

// Service manages the offer catalog.
type Service struct {
	Store AdminStore
	Now   func() time.Time
}

// Create validates and persists a new offer, active from the start.
func (s *Service) Create(ctx context.Context, o Offer) (Offer, error) {
	if s == nil || s.Store == nil {
		return Offer{}, errors.New("offer service not configured")
	}
	o.ID = uuid.New()
	o.Active = true
	if err := o.Validate(); err != nil {
		return Offer{}, err
	}
	if err := s.Store.CreateOffer(ctx, o); err != nil {
		return Offer{}, err
	}
	return o, nil
}

// List returns every offer, active or not.
func (s *Service) List(ctx context.Context) ([]Offer, error) {
	return s.Store.ListOffers(ctx)
}

// Deactivate turns an offer off. Already-priced orders keep their totals;
// the offer simply stops matching on the next resolution pass.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (Offer, error) {
	o, err := s.Store.GetOffer(ctx, id)
	if err != nil {
		return Offer{}, err
	}
	if !o.Active {
		return o, nil
	}
	o.Active = false
	if err := s.Store.UpdateOffer(ctx, o); err != nil {
		return Offer{}, err
	}
	return o, nil
}
