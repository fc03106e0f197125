// Package postgres implements the engine stores on PostgreSQL. Every unit of
// work is one pgx transaction; per-order serialization uses SELECT ... FOR
// UPDATE on the orders row.
package postgres

import (
	"context"
	"errors"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kasir-api/internal/common"
	"github.com/noah-isme/kasir-api/internal/order"
	"github.com/noah-isme/kasir-api/internal/payment"
	"github.com/noah-isme/kasir-api/internal/returns"
)

// NewPool builds a pgx pool with the shopspring decimal codec registered on
// every connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// DB bundles the pool with the unit-of-work adapters.
type DB struct {
	Pool *pgxpool.Pool
}

func (d *DB) run(ctx context.Context, fn func(tx *txn) error) error {
	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(&txn{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Orders adapts the database to the pricing engine's unit-of-work interface.
func (d *DB) Orders() order.Store { return orderStore{d} }

// Payments adapts the database to the payment service's unit-of-work interface.
func (d *DB) Payments() payment.Store { return paymentStore{d} }

// Returns adapts the database to the return engine's unit-of-work interface.
func (d *DB) Returns() returns.Store { return returnStore{d} }

type orderStore struct{ d *DB }

func (a orderStore) Within(ctx context.Context, fn func(tx order.Tx) error) error {
	return a.d.run(ctx, func(tx *txn) error { return fn(tx) })
}

type paymentStore struct{ d *DB }

func (a paymentStore) Within(ctx context.Context, fn func(tx payment.Tx) error) error {
	return a.d.run(ctx, func(tx *txn) error { return fn(tx) })
}

type returnStore struct{ d *DB }

func (a returnStore) Within(ctx context.Context, fn func(tx returns.Tx) error) error {
	return a.d.run(ctx, func(tx *txn) error { return fn(tx) })
}

// txn exposes every transaction-scoped query.
type txn struct {
	tx pgx.Tx
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr(what)
	}
	return err
}

func notFoundErr(what string) error {
	return common.NotFound(what + " not found")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
