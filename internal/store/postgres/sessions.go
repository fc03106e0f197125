package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kasir-api/internal/session"
)

var _ session.Store = (*SessionStore)(nil)

// SessionStore implements session.Store on the pool.
type SessionStore struct {
	Pool *pgxpool.Pool
}

func (s *SessionStore) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sessions (id, terminal, status, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Terminal, sess.Status, sess.OpenedAt, nullableTime(sess.ClosedAt))
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return getSession(ctx, s.Pool, id)
}

func (s *SessionStore) UpdateSession(ctx context.Context, sess session.Session) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions SET status = $2, closed_at = $3 WHERE id = $1`,
		sess.ID, sess.Status, nullableTime(sess.ClosedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("session")
	}
	return nil
}

func (t *txn) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return getSession(ctx, t.tx, id)
}

func getSession(ctx context.Context, q querier, id uuid.UUID) (session.Session, error) {
	var sess session.Session
	err := q.QueryRow(ctx, `SELECT id, terminal, status, opened_at, closed_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.Terminal, &sess.Status, &sess.OpenedAt, &sess.ClosedAt)
	if err != nil {
		return session.Session{}, notFound(err, "session")
	}
	return sess, nil
}
