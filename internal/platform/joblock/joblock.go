// Package joblock provides a named, time-bounded mutual-exclusion lock for
// background jobs. The Redis implementation serializes a job across workers;
// the in-memory implementation serves single-process deployments and tests.
package joblock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker acquires and releases named locks. Acquire returns false without an
// error when the lock is already held; the TTL bounds how long a crashed
// holder can block the next run.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

const lockKeyPrefix = "joblock:"

// RedisLocker implements Locker on Redis using SET NX with expiry.
type RedisLocker struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed locker.
func NewRedis(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := lockKeyPrefix + name
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire job lock %q: %w", name, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, name string) error {
	key := lockKeyPrefix + name
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release job lock %q: %w", name, err)
	}
	return nil
}

// MemoryLocker implements Locker in process memory.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// MemoryLockerOption configures a MemoryLocker.
type MemoryLockerOption func(*MemoryLocker)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) MemoryLockerOption {
	return func(l *MemoryLocker) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewMemory constructs an in-memory locker.
func NewMemory(opts ...MemoryLockerOption) *MemoryLocker {
	l := &MemoryLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, ok := l.held[name]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}
