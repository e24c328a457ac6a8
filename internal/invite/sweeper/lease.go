package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const LeaseKey = "boxoffice:invite-sweep:lease"

// RedisLease grants at most one holder per TTL window. Leases are never
// released early; expiry hands the next window to whoever asks first.
type RedisLease struct {
	client redis.Cmdable
	key    string
	holder string
}

func NewRedisLease(client redis.Cmdable, holder string) *RedisLease {
	return &RedisLease{client: client, key: LeaseKey, holder: holder}
}

func (l *RedisLease) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lease: %w", err)
	}
	return ok, nil
}
