package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crmbilling/internal/service"

	"github.com/go-redis/redis/v8"
)

var ErrLockFailed = errors.New("could not acquire lock")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock is a SET NX EX lock whose value identifies the holder, so
// an expired holder cannot release someone else's lock.
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval up to maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// ChargeLocker serialises purchase attempts per user across processes.
type ChargeLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewChargeLocker(client redis.Cmdable) *ChargeLocker {
	return &ChargeLocker{
		client:        client,
		ttl:           30 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

func ChargeLockKey(userID int64) string {
	return fmt.Sprintf("billing:charge:user:%d", userID)
}

// Acquire blocks until the user's lock is held by owner. The returned func
// releases it. A lock still held after the retries yields service.ErrBusy;
// redis errors are returned as they are.
func (c *ChargeLocker) Acquire(ctx context.Context, userID int64, owner string) (func(context.Context) error, error) {
	l := NewDistributedLock(c.client, ChargeLockKey(userID), owner, c.ttl)
	if err := l.Lock(ctx, c.retryInterval, c.maxRetries); err != nil {
		if errors.Is(err, ErrLockFailed) {
			return nil, fmt.Errorf("%w: %v", service.ErrBusy, err)
		}
		return nil, fmt.Errorf("acquire charge lock: %w", err)
	}
	return l.Unlock, nil
}
