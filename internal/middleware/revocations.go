package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations remembers logged out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocations keeps one expiring blacklist key per token.
type RedisRevocations struct {
	redis *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{redis: client}
}

func blacklistKey(id string) string {
	return "blacklist:" + id
}

func (r *RedisRevocations) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	return r.redis.Set(ctx, blacklistKey(id), "1", ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	err := r.redis.Get(ctx, blacklistKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevocations is the in-process blacklist used without Redis.
type MemoryRevocations struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{expires: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[id] = m.now().Add(ttl)
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.expires[id]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.expires, id)
		return false, nil
	}
	return true, nil
}
