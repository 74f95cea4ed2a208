// Package lock keeps at most one attempt in progress per student and test.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard hands out exclusive, expiring keys.
type Guard interface {
	// Acquire returns false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// AttemptKey names the lock for one (test, student) pair.
func AttemptKey(testID, studentID string) string {
	return "edutest:attempt:" + testID + ":" + studentID
}

type memoryGuard struct {
	mu   sync.Mutex
	now  func() time.Time
	held map[string]time.Time // key -> expiry
}

// NewMemoryGuard is a process-local Guard. now may be nil.
func NewMemoryGuard(now func() time.Time) Guard {
	if now == nil {
		now = time.Now
	}
	return &memoryGuard{now: now, held: map[string]time.Time{}}
}

func (g *memoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.held[key] = now.Add(ttl)
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}

// RedisGuard shares attempt locks between service instances.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// DialRedis connects and pings addr.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}
