// Package pricing exposes the reference price the sell offers are quoted
// against, as SEEDS per USD for the current price round.
package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/shopspring/decimal"
)

// Snapshot is one price round.
type Snapshot struct {
	SeedsPerUSD decimal.Decimal `json:"seeds_per_usd"`
	RoundID     uint64          `json:"round_id"`
}

// Feed is the reference price collaborator.
type Feed interface {
	Current(ctx context.Context) (Snapshot, error)
}

// MemoryFeed holds the latest round published by the operator.
type MemoryFeed struct {
	mu      sync.RWMutex
	current *Snapshot
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

// Publish replaces the current round. Rounds must move forward.
func (f *MemoryFeed) Publish(s Snapshot) error {
	if !s.SeedsPerUSD.IsPositive() {
		return fmt.Errorf("%w: seeds per usd must be positive", models.ErrInvalidAsset)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && s.RoundID <= f.current.RoundID {
		return fmt.Errorf("%w: round %d is not after %d", models.ErrInvalidState, s.RoundID, f.current.RoundID)
	}
	f.current = &s
	return nil
}

func (f *MemoryFeed) Current(_ context.Context) (Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.current == nil {
		return Snapshot{}, fmt.Errorf("%w: no reference price has been published", models.ErrNotFound)
	}
	return *f.current, nil
}

// Quote derives the price info of a sell offer: UnitPrice is the USD asked
// for one SEEDS at pricePercentage of the reference.
func Quote(s Snapshot, pricePercentage uint64) models.PriceInfo {
	unit := decimal.NewFromInt(int64(pricePercentage)).
		Div(decimal.NewFromInt(100)).
		Div(s.SeedsPerUSD).
		Round(8)

	return models.PriceInfo{
		PricePercentage: pricePercentage,
		ReferenceRate:   s.SeedsPerUSD,
		RoundID:         s.RoundID,
		UnitPrice:       unit,
	}
}
