package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another process")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DistributedLock is a single-holder lock stored in redis with SET NX PX. A
// nil client makes every acquire succeed, leaving serialization to the caller.
type DistributedLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock and returns the function that releases it.
func (l *DistributedLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	if l.client == nil {
		return func(context.Context) error { return nil }, nil
	}

	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return nil
	}
	return release, nil
}
