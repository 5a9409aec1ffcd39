package services

import (
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/store"
)

// Offer returns one offer.
func (e *Engine) Offer(id uint64) (*models.Offer, error) {
	var out *models.Offer
	err := e.store.View(func(tx *store.Txn) error {
		var err error
		out, err = tx.Offer(id)
		return err
	})
	return out, err
}

// FindOffers filters the offer table through its secondary orderings.
func (e *Engine) FindOffers(q store.Query) []*models.Offer {
	var out []*models.Offer
	e.store.View(func(tx *store.Txn) error {
		out = tx.Find(q)
		return nil
	})
	return out
}

// Children returns the live buy offers of a listing.
func (e *Engine) Children(sellID uint64) ([]*models.Offer, error) {
	var out []*models.Offer
	err := e.store.View(func(tx *store.Txn) error {
		o, err := tx.Offer(sellID)
		if err != nil {
			return err
		}
		if o.Kind != models.KindSell {
			return models.ErrNotFound
		}
		out = tx.Children(sellID)
		return nil
	})
	return out, err
}
