package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "sheets:lock:"
	lockRetryMin    = 25 * time.Millisecond
	lockRetryMax    = time.Second
	lockReleaseWait = 5 * time.Second
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKeyLocker serializes syncs of the same key across processes. The TTL
// bounds how long a crashed holder can block others.
type RedisKeyLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisKeyLocker(client *redis.Client, ttl time.Duration) *RedisKeyLocker {
	return &RedisKeyLocker{client: client, ttl: ttl}
}

// Lock blocks until the lock is held or ctx is done.
func (r *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	wait := lockRetryMin

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { r.release(redisKey, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %q: %w", ErrLockNotAcquired, key, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, lockRetryMax)
	}
}

// release runs on its own context so a cancelled caller still frees the key.
func (r *RedisKeyLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), lockReleaseWait)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
		slog.Warn("failed to release lock", "key", redisKey, "err", err)
	}
}
