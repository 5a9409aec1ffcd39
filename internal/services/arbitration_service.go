package services

import (
	"context"
	"fmt"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/store"
	"go.uber.org/zap"
)

// Parties an arbiter can record contact with.
const (
	PartyBuyer  = "buyer"
	PartySeller = "seller"
)

// caseStep loads a case and its buy offer, runs fn and stages both.
func (e *Engine) caseStep(ctx context.Context, operation, caller string, id uint64, fn func(u *unit, c *models.ArbitrationCase, o *models.Offer) error) (*models.ArbitrationCase, error) {
	var out *models.ArbitrationCase
	err := e.update(ctx, operation, caller, func(u *unit) error {
		c, err := u.tx.Case(id)
		if err != nil {
			return err
		}
		o, err := buyOffer(u, id)
		if err != nil {
			return err
		}
		if err := fn(u, c, o); err != nil {
			return err
		}
		u.tx.PutCase(c)
		u.tx.PutOffer(o)
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("[ARBITRATION] Case updated",
		zap.String("operation", operation),
		zap.Uint64("offer_id", id),
		zap.String("arbiter", out.Arbiter),
		zap.String("resolution", string(out.Resolution)))
	return out, nil
}

func requireAssigned(c *models.ArbitrationCase, caller string) error {
	if c.Arbiter != caller {
		return fmt.Errorf("%w: %s is not the arbiter of case %d", models.ErrUnauthorized, caller, c.OfferID)
	}
	if c.Resolution != models.ResolutionInProgress {
		return fmt.Errorf("%w: case %d is %s", models.ErrInvalidState, c.OfferID, c.Resolution)
	}
	return nil
}

// AssignArbiter lets a flagged arbiter take a pending case. An arbiter may
// not judge a trade they are a party to.
func (e *Engine) AssignArbiter(ctx context.Context, caller string, id uint64) (*models.ArbitrationCase, error) {
	return e.caseStep(ctx, "assign_arbiter", caller, id, func(u *unit, c *models.ArbitrationCase, o *models.Offer) error {
		user, err := u.tx.User(caller)
		if err != nil || !user.IsArbiter {
			return fmt.Errorf("%w: %s is not an arbiter", models.ErrUnauthorized, caller)
		}
		if c.Resolution != models.ResolutionPending {
			return fmt.Errorf("%w: case %d is %s", models.ErrInvalidState, c.OfferID, c.Resolution)
		}
		if caller == o.Buyer || caller == o.Seller {
			return fmt.Errorf("%w: %s is a party to offer %d", models.ErrPolicyViolation, caller, o.ID)
		}
		if err := u.transition(o, models.BuyArbitrationInProgress); err != nil {
			return err
		}
		c.Arbiter = caller
		c.Resolution = models.ResolutionInProgress
		return nil
	})
}

// ResolveForSeller returns the disputed quantity from escrow to the
// seller's listing. If the listing was canceled meanwhile the funds go to
// available instead. Stats are untouched.
func (e *Engine) ResolveForSeller(ctx context.Context, caller string, id uint64, notes string) (*models.ArbitrationCase, error) {
	return e.caseStep(ctx, "resolve_for_seller", caller, id, func(u *unit, c *models.ArbitrationCase, o *models.Offer) error {
		if err := requireAssigned(c, caller); err != nil {
			return err
		}
		if err := u.transition(o, models.BuyResolvedSeller); err != nil {
			return err
		}

		parent, err := sellOffer(u, o.SellID)
		if err != nil {
			return err
		}
		qty := o.Buy.RequestedQuantity
		dest := BackToLocked
		if parent.Status == models.SellCanceled {
			dest = BackToAvailable
		} else {
			parent.Sell.Available += qty
			if parent.Status == models.SellSoldOut {
				if err := u.transition(parent, models.SellActive); err != nil {
					return err
				}
			}
			u.tx.PutOffer(parent)
		}
		if err := e.ledger.ReleaseEscrow(u, o.Seller, qty, dest, ""); err != nil {
			return err
		}

		resolve(u, c, models.ResolutionResolvedSeller, notes)
		return nil
	})
}

// ResolveForBuyer sends the disputed quantity to the buyer, as a normal
// confirmation would, and completes the trade. Only the buyer's stats move.
func (e *Engine) ResolveForBuyer(ctx context.Context, caller string, id uint64, notes string) (*models.ArbitrationCase, error) {
	return e.caseStep(ctx, "resolve_for_buyer", caller, id, func(u *unit, c *models.ArbitrationCase, o *models.Offer) error {
		if err := requireAssigned(c, caller); err != nil {
			return err
		}
		if err := u.transition(o, models.BuyResolvedBuyer); err != nil {
			return err
		}
		if err := u.transition(o, models.BuySuccessful); err != nil {
			return err
		}
		if err := e.completeTrade(u, o, false); err != nil {
			return err
		}

		resolve(u, c, models.ResolutionResolvedBuyer, notes)
		return nil
	})
}

func resolve(u *unit, c *models.ArbitrationCase, r models.Resolution, notes string) {
	at := u.now
	c.Resolution = r
	c.Notes = notes
	c.ResolvedAt = &at
}

// RecordContact flags that the arbiter reached one of the parties. The
// flags are informational and gate nothing.
func (e *Engine) RecordContact(ctx context.Context, caller string, id uint64, party string) (*models.ArbitrationCase, error) {
	return e.caseStep(ctx, "record_contact", caller, id, func(u *unit, c *models.ArbitrationCase, o *models.Offer) error {
		if err := requireAssigned(c, caller); err != nil {
			return err
		}
		switch party {
		case PartyBuyer:
			c.BuyerContacted = true
		case PartySeller:
			c.SellerContacted = true
		default:
			return fmt.Errorf("%w: unknown party %q", models.ErrPolicyViolation, party)
		}
		return nil
	})
}

// Case returns the arbitration case of a buy offer.
func (e *Engine) Case(id uint64) (*models.ArbitrationCase, error) {
	var out *models.ArbitrationCase
	err := e.store.View(func(tx *store.Txn) error {
		var err error
		out, err = tx.Case(id)
		return err
	})
	return out, err
}

// Cases lists arbitration cases, optionally filtered by resolution and
// arbiter.
func (e *Engine) Cases(resolution models.Resolution, arbiter string) []models.ArbitrationCase {
	return e.store.Cases(resolution, arbiter)
}
