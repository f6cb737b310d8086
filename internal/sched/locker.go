package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Release gives a held lock back. Releasing a lock that already expired is
// a no-op.
type Release func(ctx context.Context) error

// Locker provides mutual exclusion across worker instances so that only
// one scheduler fires a crawl cadence at a time.
type Locker interface {
	// Acquire tries to take the named lock for at most ttl. The second
	// return reports whether the lock was obtained.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Release, bool, error)
}

// releaseScript deletes the lock only when the caller still owns it, so a
// slow holder can never release a lock that expired and was re-acquired
// by someone else.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and an owner token. The TTL
// is a hard ceiling: a crashed holder's lock simply expires.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a locker over the given redis client
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Release, bool, error) {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// MemoryLocker is an in-process Locker used by tests and single-instance
// deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Release, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[name]; ok && held.expires.After(time.Now()) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.locks[name] = memoryLock{token: token, expires: time.Now().Add(ttl)}

	release := func(_ context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.locks[name]; ok && held.token == token {
			delete(l.locks, name)
		}
		return nil
	}
	return release, true, nil
}
