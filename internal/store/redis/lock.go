package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RunLockKey holds the ID of the run currently holding the lock.
const RunLockKey = keyPrefix + "run_lock"

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a cluster-wide single-flight lock for pipeline runs.
// The TTL bounds how long a crashed holder can block new runs.
type RunLock struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRunLock creates a lock with the given expiry.
func NewRunLock(client *goredis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RunLock{client: client, ttl: ttl}
}

// TryLock acquires the lock for runID. It returns false if another run holds it.
func (l *RunLock) TryLock(ctx context.Context, runID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, RunLockKey, runID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock if runID still holds it.
func (l *RunLock) Unlock(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{RunLockKey}, runID).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}

// Holder returns the run ID holding the lock, or "" when free.
func (l *RunLock) Holder(ctx context.Context) (string, error) {
	v, err := l.client.Get(ctx, RunLockKey).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return v, err
}
