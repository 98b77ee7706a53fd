package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/reconcile"
)

var (
	// ErrLockNotAcquired is returned when a lock is still held by another run after the wait expires
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
	ErrLockNotHeld = errors.New("lock not held")
)

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 500 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock is a held lock. Only the holder's token can release it.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Locker takes per-key locks with SET NX. A busy key is retried until wait elapses.
type Locker struct {
	client *Client
	wait   time.Duration
}

// NewLocker creates a Locker that waits up to wait for a busy key
func NewLocker(client *Client, wait time.Duration) *Locker {
	return &Locker{
		client: client,
		wait:   wait,
	}
}

// Acquire blocks until the key is free, the wait expires or ctx is done
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (reconcile.Unlocker, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)
	backoff := minBackoff
	contended := false

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", key)
			return &Lock{client: l.client, key: key, token: token}, nil
		}

		if !contended {
			contended = true
			metrics.LeadLockContention.Inc()
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Release deletes the key if this lock still owns it
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}
