// Package session manages register sessions. Orders and returns can only be
// created against an open session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/kasir-api/internal/common"
)

// Status enumerates session lifecycle states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Session is one register shift.
type Session struct {
	ID       uuid.UUID
	Terminal string
	Status   Status
	OpenedAt time.Time
	ClosedAt *time.Time
}

// Store persists sessions.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	UpdateSession(ctx context.Context, s Session) error
}

// RequireOpen rejects operations against a session that is not open.
func RequireOpen(s Session) error {
	if s.Status != StatusOpen {
		return common.BusinessRule("session is not open")
	}
	return nil
}

// Service encapsulates session operations.
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

// Open starts a new register session.
func (s *Service) Open(ctx context.Context, terminal string) (Session, error) {
	if s == nil || s.Store == nil {
		return Session{}, errors.New("session service not configured")
	}
	sess := Session{
		ID:       uuid.New(),
		Terminal: terminal,
		Status:   StatusOpen,
		OpenedAt: s.now(),
	}
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Close ends an open session.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (Session, error) {
	if s == nil || s.Store == nil {
		return Session{}, errors.New("session service not configured")
	}
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := RequireOpen(sess); err != nil {
		return Session{}, err
	}
	closedAt := s.now()
	sess.Status = StatusClosed
	sess.ClosedAt = &closedAt
	if err := s.Store.UpdateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}
