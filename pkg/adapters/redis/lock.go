package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/furrow/pkg/ports"
)

// unlockScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// retryInterval is the polling cadence while a lock is contended.
const retryInterval = 100 * time.Millisecond

// Locker implements ports.DistributedLocker with SET NX plus a TTL. It
// serializes turns on one thread across processes.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a locker. Keys are written as prefix + "lock:" + key.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Acquire blocks until the lock is held or ctx ends. The returned unlock is
// owner-checked; a lock lost to TTL expiry unlocks as a no-op.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	owner := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, owner, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			unlock := func(ctx context.Context) error {
				if err := l.client.Eval(ctx, unlockScript, []string{lockKey}, owner).Err(); err != nil {
					return fmt.Errorf("release lock %q: %w", key, err)
				}
				return nil
			}
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
