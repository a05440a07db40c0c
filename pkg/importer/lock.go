package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guarantees a single writer per institution across processes.
type Locker interface {
	Acquire(ctx context.Context, institution string) (release func(context.Context) error, err error)
}

// lockClient is the subset of *redis.Client used by RedisLocker.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type RedisLocker struct {
	client lockClient
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(client lockClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, prefix: "hospital-import:lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, institution string) (func(context.Context) error, error) {
	key := l.prefix + institution
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, institution)
	}

	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release import lock: %w", err)
		}
		return nil
	}
	return release, nil
}

// LocalLocker serializes runs per institution within one process, for deployments
// without redis.
type LocalLocker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{running: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, institution string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.running[institution]; ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, institution)
	}
	l.running[institution] = struct{}{}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.running, institution)
		return nil
	}
	return release, nil
}
