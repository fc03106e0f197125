// Package lock provides a Redis-backed mutual exclusion primitive. The worker
// uses it so only one sweeper voids expired held orders at a time.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Try when another holder owns the key.
var ErrHeld = errors.New("lock: held elsewhere")

// Redis is a SetNX-based lock. Release only deletes the key when the token
// still matches, so an expired lock taken over by another holder is never
// released by the previous one.
type Redis struct {
	Client  *redis.Client
	TTL     time.Duration
	Backoff time.Duration
}

func (l Redis) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return 30 * time.Second
}

// Try runs fn while holding the lock, or returns ErrHeld immediately when the
// key is owned elsewhere. The lock is released when fn returns.
func (l Redis) Try(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.Client == nil {
		return errors.New("lock: redis client not configured")
	}
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, l.ttl()).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer l.release(context.WithoutCancel(ctx), key, token)
	return fn(ctx)
}

// Do runs fn while holding the lock, retrying acquisition with a fixed
// backoff until the context is cancelled.
func (l Redis) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	for {
		err := l.Try(ctx, key, fn)
		if !errors.Is(err, ErrHeld) {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Redis) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.Client.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.Client.Del(ctx, key).Err()
		}
	}
}
