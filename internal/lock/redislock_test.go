package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-api/internal/lock"
)

func newLock(t *testing.T) lock.Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Redis{Client: client, TTL: time.Second, Backoff: 5 * time.Millisecond}
}

func TestTrySkipsWhenHeld(t *testing.T) {
	l := newLock(t)
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.Try(ctx, "sweep", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()

	<-acquired
	err := l.Try(ctx, "sweep", func(context.Context) error { return nil })
	require.ErrorIs(t, err, lock.ErrHeld)

	close(release)
	require.NoError(t, <-done)

	// released: acquisition succeeds again
	require.NoError(t, l.Try(ctx, "sweep", func(context.Context) error { return nil }))
}

func TestDoWaitsForRelease(t *testing.T) {
	l := newLock(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	acquired := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.Try(ctx, "sweep", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()

	<-acquired
	ran := make(chan struct{})
	go func() {
		err := l.Do(ctx, "sweep", func(context.Context) error {
			close(ran)
			return nil
		})
		require.NoError(t, err)
	}()

	select {
	case <-ran:
		t.Fatal("second holder ran while the lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestDoReturnsContextError(t *testing.T) {
	l := newLock(t)
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_ = l.Try(ctx, "sweep", func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := l.Do(short, "sweep", func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
