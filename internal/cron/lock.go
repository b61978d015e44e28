package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = time.Hour

// Lock coordinates exclusive runs of a named job across cron instances.
type Lock interface {
	Acquire(ctx context.Context, job string) (token string, ok bool, err error)
	Release(ctx context.Context, job, token string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	LockKey(name string) string
}

// RedisLock implements Lock using Redis SETNX + TTL, one key per job.
type RedisLock struct {
	client redisStore
	scope  string
	ttl    time.Duration
}

// NewRedisLock constructs a Redis-backed lock. scope separates environments
// sharing one Redis.
func NewRedisLock(client redisStore, scope string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, scope: scope, ttl: ttl}, nil
}

func (l *RedisLock) key(job string) string {
	return l.client.LockKey(fmt.Sprintf("cron:%s:%s", l.scope, job))
}

// Acquire tries to own the job's lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context, job string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(job), token, l.ttl)
	if err != nil {
		return "", false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock only if token still owns it.
func (l *RedisLock) Release(ctx context.Context, job, token string) error {
	if token == "" {
		return nil
	}
	if _, err := l.client.CompareAndDelete(ctx, l.key(job), token); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
