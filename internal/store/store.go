// Package store keeps the escrow tables in memory. The offer table is the
// single source of truth; secondary orderings are derived from it and
// rebuilt incrementally on every commit.
package store

import (
	"sort"
	"sync"

	"github.com/ruralpay/escrow/internal/models"
)

// Store holds balances, profiles, stats, offers and arbitration cases.
// All mutation goes through Update, which runs one unit of work under an
// exclusive lock.
type Store struct {
	mu       sync.RWMutex
	nextID   uint64
	balances map[string]*models.AccountBalance
	users    map[string]*models.User
	stats    map[string]*models.TransactionStats
	offers   map[uint64]*models.Offer
	cases    map[uint64]*models.ArbitrationCase
	indexes  map[IndexName]*index
}

func New() *Store {
	s := &Store{}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.nextID = 1
	s.balances = make(map[string]*models.AccountBalance)
	s.users = make(map[string]*models.User)
	s.stats = make(map[string]*models.TransactionStats)
	s.offers = make(map[uint64]*models.Offer)
	s.cases = make(map[uint64]*models.ArbitrationCase)
	s.indexes = newIndexes()
}

// Update runs fn as one indivisible unit of work. Changes staged on the
// Txn are applied only when fn returns nil.
func (s *Store) Update(fn func(tx *Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTxn(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against a consistent snapshot. Anything fn stages is dropped.
func (s *Store) View(fn func(tx *Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newTxn(s))
}

// Reset clears every table.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// StatsOrder selects the ranking used by RankStats.
type StatsOrder string

const (
	StatsByTotal StatsOrder = "total"
	StatsBySells StatsOrder = "sells"
	StatsByBuys  StatsOrder = "buys"
)

// RankStats lists stats ordered by the chosen counter, highest first.
func (s *Store) RankStats(order StatsOrder, limit int) []models.TransactionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TransactionStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}

	counter := func(st models.TransactionStats) uint64 {
		switch order {
		case StatsBySells:
			return st.SellsCompleted
		case StatsByBuys:
			return st.BuysCompleted
		default:
			return st.TotalCompleted
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := counter(out[i]), counter(out[j])
		if ci != cj {
			return ci > cj
		}
		return out[i].Account < out[j].Account
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cases lists arbitration cases by offer id, optionally filtered.
func (s *Store) Cases(resolution models.Resolution, arbiter string) []models.ArbitrationCase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ArbitrationCase
	for _, c := range s.cases {
		if resolution != "" && c.Resolution != resolution {
			continue
		}
		if arbiter != "" && c.Arbiter != arbiter {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferID < out[j].OfferID })
	return out
}
