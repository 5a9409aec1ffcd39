package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRedisRegistry_StatusAtLeast(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	registry := NewRedisRegistry(client, "identity:status")

	t.Run("resident satisfies visitor and resident", func(t *testing.T) {
		mock.ExpectHGet("identity:status", "alice").SetVal(models.TierResident)
		ok, err := registry.StatusAtLeast(ctx, "alice", models.TierVisitor)
		assert.NoError(t, err)
		assert.True(t, ok)

		mock.ExpectHGet("identity:status", "alice").SetVal(models.TierResident)
		ok, err = registry.StatusAtLeast(ctx, "alice", models.TierCitizen)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectHGet("identity:status", "mallory").RedisNil()
		ok, err := registry.StatusAtLeast(ctx, "mallory", models.TierVisitor)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("redis failure", func(t *testing.T) {
		mock.ExpectHGet("identity:status", "bob").SetErr(errors.New("connection refused"))
		_, err := registry.StatusAtLeast(ctx, "bob", models.TierVisitor)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRegistry_StatusAtLeast(t *testing.T) {
	registry := NewMemoryRegistry()
	registry.Set("carol", models.TierVisitor)

	ok, _ := registry.StatusAtLeast(context.Background(), "carol", models.TierVisitor)
	assert.True(t, ok)

	ok, _ = registry.StatusAtLeast(context.Background(), "carol", models.TierResident)
	assert.False(t, ok)

	ok, _ = registry.StatusAtLeast(context.Background(), "dave", models.TierVisitor)
	assert.False(t, ok)
}
