// Package identity answers reputation questions about accounts. The
// registry itself is owned by another system; the escrow only asks whether
// an account holds at least a given tier.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/escrow/internal/models"
)

// Registry is the contract the escrow consumes.
type Registry interface {
	StatusAtLeast(ctx context.Context, account, tier string) (bool, error)
}

// RedisRegistry reads tiers from a Redis hash maintained by the identity
// system: HGET <key> <account> → "visitor" | "resident" | "citizen".
type RedisRegistry struct {
	redis *redis.Client
	key   string
}

func NewRedisRegistry(client *redis.Client, key string) *RedisRegistry {
	return &RedisRegistry{redis: client, key: key}
}

func (r *RedisRegistry) StatusAtLeast(ctx context.Context, account, tier string) (bool, error) {
	status, err := r.redis.HGet(ctx, r.key, account).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity lookup for %s: %w", account, err)
	}
	return models.TierRank(status) >= models.TierRank(tier), nil
}

// Set records the tier of account. Used by tooling that seeds the registry.
func (r *RedisRegistry) Set(ctx context.Context, account, tier string) error {
	return r.redis.HSet(ctx, r.key, account, tier).Err()
}

// MemoryRegistry keeps tiers in process, for tests and local runs.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tiers map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tiers: make(map[string]string)}
}

func (m *MemoryRegistry) Set(account, tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[account] = tier
}

func (m *MemoryRegistry) StatusAtLeast(_ context.Context, account, tier string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.tiers[account]
	if !ok {
		return false, nil
	}
	return models.TierRank(status) >= models.TierRank(tier), nil
}
