package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lease:"

// LeaseStore guards pipeline runs: at most one unexpired lease exists per
// task key. Acquire and Release are the only operations workers use; Clear is
// an explicit maintenance call for stale leases and is never run implicitly.
type LeaseStore interface {
	// Acquire creates a lease for key if none exists. Returns false when an
	// unexpired lease is already held (duplicate suppressed, not an error).
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release deletes the lease regardless of the job's outcome, so failed
	// jobs can be retried by a fresh enqueue instead of waiting out the TTL.
	Release(ctx context.Context, key string) error
	// Clear removes every lease and reports how many were dropped.
	Clear(ctx context.Context) (int, error)
}

// MemoryStore implements LeaseStore in-process. Used in tests and when no
// Redis is configured; it cannot coordinate across processes.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]time.Time)}
}

func (m *MemoryStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.leases[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.leases[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.leases)
	m.leases = make(map[string]time.Time)
	return n, nil
}

// RedisStore implements LeaseStore on Redis. SetNX with a TTL is the only
// admission path, so there is no read-then-write race between workers.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (r *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, keyPrefix+key, time.Now().Unix(), ttl).Result()
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, keyPrefix+key).Err()
}

func (r *RedisStore) Clear(ctx context.Context) (int, error) {
	var cursor uint64
	total := 0
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			total += int(n)
			if err != nil {
				return total, err
			}
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
