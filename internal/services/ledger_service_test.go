package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stage runs fn on a fresh unit against s and reports what it queued.
func stage(t *testing.T, s *store.Store, fn func(u *unit) error) (*unit, error) {
	t.Helper()
	u := &unit{ctx: context.Background(), now: time.Now().UTC()}
	err := s.Update(func(tx *store.Txn) error {
		u.tx = tx
		return fn(u)
	})
	return u, err
}

func bucketsOf(t *testing.T, s *store.Store, account string) models.AccountBalance {
	t.Helper()
	var b models.AccountBalance
	require.NoError(t, s.View(func(tx *store.Txn) error {
		got, err := tx.Balance(account)
		if err != nil {
			return err
		}
		b = *got
		return nil
	}))
	return b
}

func TestLedger(t *testing.T) {
	s := store.New()
	l := &Ledger{}

	_, err := stage(t, s, func(u *unit) error { return l.Credit(u, "alice", 1000) })
	require.NoError(t, err)

	t.Run("reserve and release", func(t *testing.T) {
		_, err := stage(t, s, func(u *unit) error { return l.ReserveForSale(u, "alice", 600) })
		require.NoError(t, err)
		b := bucketsOf(t, s, "alice")
		assert.Equal(t, int64(400), b.Available)
		assert.Equal(t, int64(600), b.Locked)

		_, err = stage(t, s, func(u *unit) error { return l.ReleaseFromSale(u, "alice", 100) })
		require.NoError(t, err)
		b = bucketsOf(t, s, "alice")
		assert.Equal(t, int64(500), b.Available)
		assert.Equal(t, int64(500), b.Locked)
	})

	t.Run("escrow out to counterparty", func(t *testing.T) {
		_, err := stage(t, s, func(u *unit) error { return l.MoveToEscrow(u, "alice", 200) })
		require.NoError(t, err)

		u, err := stage(t, s, func(u *unit) error {
			return l.ReleaseEscrow(u, "alice", 150, ToAccount("bob"), "offer 2")
		})
		require.NoError(t, err)
		require.Len(t, u.transfers, 1)
		assert.Equal(t, "bob", u.transfers[0].To)
		assert.Equal(t, models.Seeds(150), u.transfers[0].Quantity)

		b := bucketsOf(t, s, "alice")
		assert.Equal(t, int64(50), b.Escrow)
		assert.Equal(t, int64(850), b.Total())
	})

	t.Run("escrow back to the seller", func(t *testing.T) {
		u, err := stage(t, s, func(u *unit) error { return l.ReleaseEscrow(u, "alice", 30, BackToLocked, "") })
		require.NoError(t, err)
		assert.Empty(t, u.transfers)
		_, err = stage(t, s, func(u *unit) error { return l.ReleaseEscrow(u, "alice", 20, BackToAvailable, "") })
		require.NoError(t, err)

		b := bucketsOf(t, s, "alice")
		assert.Equal(t, int64(0), b.Escrow)
		assert.Equal(t, int64(330), b.Locked)
		assert.Equal(t, int64(520), b.Available)
	})

	t.Run("insufficient buckets", func(t *testing.T) {
		before := bucketsOf(t, s, "alice")
		ops := map[string]func(u *unit) error{
			"debit":   func(u *unit) error { return l.Debit(u, "alice", 521) },
			"reserve": func(u *unit) error { return l.ReserveForSale(u, "alice", 521) },
			"release": func(u *unit) error { return l.ReleaseFromSale(u, "alice", 331) },
			"escrow":  func(u *unit) error { return l.MoveToEscrow(u, "alice", 331) },
			"payout":  func(u *unit) error { return l.ReleaseEscrow(u, "alice", 1, ToAccount("bob"), "") },
		}
		for name, op := range ops {
			_, err := stage(t, s, op)
			assert.True(t, errors.Is(err, models.ErrInsufficientFunds), "%s: %v", name, err)
		}
		assert.Equal(t, before, bucketsOf(t, s, "alice"))
	})

	t.Run("account without a balance", func(t *testing.T) {
		ops := map[string]func(u *unit) error{
			"debit":   func(u *unit) error { return l.Debit(u, "nobody", 1) },
			"reserve": func(u *unit) error { return l.ReserveForSale(u, "nobody", 1) },
			"release": func(u *unit) error { return l.ReleaseFromSale(u, "nobody", 1) },
			"escrow":  func(u *unit) error { return l.MoveToEscrow(u, "nobody", 1) },
			"payout":  func(u *unit) error { return l.ReleaseEscrow(u, "nobody", 1, BackToAvailable, "") },
		}
		for name, op := range ops {
			_, err := stage(t, s, op)
			assert.True(t, errors.Is(err, models.ErrNotFound), "%s: %v", name, err)
		}
		var err error
		require.NoError(t, s.View(func(tx *store.Txn) error {
			_, err = tx.Balance("nobody")
			return nil
		}))
		assert.True(t, errors.Is(err, models.ErrNotFound), "nothing was opened for nobody")
	})

	t.Run("non-positive amounts", func(t *testing.T) {
		_, err := stage(t, s, func(u *unit) error { return l.Credit(u, "alice", 0) })
		assert.True(t, errors.Is(err, models.ErrInvalidAsset))
		_, err = stage(t, s, func(u *unit) error { return l.Debit(u, "alice", -5) })
		assert.True(t, errors.Is(err, models.ErrInvalidAsset))
	})

	t.Run("two mutations in one unit", func(t *testing.T) {
		_, err := stage(t, s, func(u *unit) error {
			if err := l.Debit(u, "alice", 20); err != nil {
				return err
			}
			return l.Debit(u, "alice", 10_000)
		})
		require.Error(t, err)
		assert.Equal(t, int64(520), bucketsOf(t, s, "alice").Available)
	})
}

func TestLedger_VersionAdvances(t *testing.T) {
	s := store.New()
	l := &Ledger{}

	for i := 0; i < 3; i++ {
		_, err := stage(t, s, func(u *unit) error { return l.Credit(u, "alice", 10) })
		require.NoError(t, err)
	}
	b := bucketsOf(t, s, "alice")
	assert.Equal(t, 3, b.Version)
	assert.Equal(t, int64(30), b.Available)
}
