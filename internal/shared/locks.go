package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OrderLockKey builds the redis key guarding one order's mutations.
func OrderLockKey(orderID string) string {
	return fmt.Sprintf("orders:%s:lock", orderID)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker provides best-effort distributed mutexes backed by redis.
// Transitions for a single order must not overlap, so the orchestrator
// takes the order lock for the duration of its read-modify-write.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker constructs a Locker. The TTL bounds how long a crashed holder
// can keep a key alive.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock for key, retrying briefly before giving up with
// ErrLockBusy. The returned function releases the lock; releasing a lock
// that expired and was re-acquired by someone else is a no-op.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	for attempt := 0; attempt < 5; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: acquire lock %s: %v", ErrRepositoryUnavailable, key, err)
		}
		if ok {
			release := func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("shared: %w: %s", ErrLockBusy, key)
}
