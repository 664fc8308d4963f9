// Package lock provides short-lived mutual exclusion for operations that must not overlap,
// such as finalizing the same billing period twice at once.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock: already held")

// ReleaseFunc releases an acquired lock. It is safe to call more than once.
type ReleaseFunc func()

// Locker acquires named locks that expire after ttl even if never released.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// LocalLocker is an in-process Locker used when no redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	nowFn func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), nowFn: time.Now}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("lock: empty key")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if entry, ok := l.held[key]; ok && entry.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker wraps a redis client. Keys are namespaced with prefix.
func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	if rdb == nil {
		return nil
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("lock: empty key")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, errSet := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if errSet != nil {
		return nil, errSet
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.rdb, []string{fullKey}, token).Err()
		})
	}, nil
}
