package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held for the whole wait window.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait is how long Acquire keeps retrying.
	Wait  time.Duration
	Retry time.Duration
}

// RedisLocker is a single-instance Redis mutex (SET NX PX plus a
// token-checked delete).
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	opts   Options
}

func NewRedisLocker(client redis.UniversalClient, prefix string, opts Options) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, prefix: prefix, opts: opts}
}

// Acquire blocks until key is locked, ctx is done or the wait window passes.
// The returned release func is safe to call after the TTL expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	k := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", k, err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
					return fmt.Errorf("release lock %s: %w", k, err)
				}
				return nil
			}, nil
		}

		if time.Now().Add(l.opts.Retry).After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, k)
		}

		t := time.NewTimer(l.opts.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, k, ctx.Err())
		case <-t.C:
		}
	}
}
