package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/store"
	"go.uber.org/zap"
)

// ProfileInput is the editable part of a user profile.
type ProfileInput struct {
	ContactMethods map[string]string `json:"contact_methods"`
	PaymentMethods map[string]string `json:"payment_methods"`
	TimeZone       string            `json:"time_zone" validate:"required"`
	FiatCurrency   string            `json:"fiat_currency" validate:"required,len=3"`
}

// UpsertUser creates or updates the caller's profile. Stats are created
// zeroed on first insert and kept on update.
func (e *Engine) UpsertUser(ctx context.Context, caller string, in ProfileInput) (*models.User, error) {
	if err := e.requireTier(ctx, caller, models.TierVisitor); err != nil {
		e.reject("upsert_user", caller, err)
		return nil, err
	}

	var out *models.User
	err := e.update(ctx, "upsert_user", caller, func(u *unit) error {
		user, err := u.tx.User(caller)
		switch {
		case errors.Is(err, models.ErrNotFound):
			user = &models.User{Account: caller, CreatedAt: u.now}
			u.tx.PutStats(&models.TransactionStats{Account: caller})
		case err != nil:
			return err
		}

		user.ContactMethods = in.ContactMethods
		user.PaymentMethods = in.PaymentMethods
		user.TimeZone = in.TimeZone
		user.FiatCurrency = in.FiatCurrency
		user.UpdatedAt = u.now
		u.tx.PutUser(user)
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("User profile saved", zap.String("account", caller))
	return out, nil
}

// AddArbiter grants the arbiter capability to a registered user.
func (e *Engine) AddArbiter(ctx context.Context, caller, account string) error {
	return e.setArbiter(ctx, caller, account, true)
}

// RemoveArbiter revokes the arbiter capability.
func (e *Engine) RemoveArbiter(ctx context.Context, caller, account string) error {
	return e.setArbiter(ctx, caller, account, false)
}

func (e *Engine) setArbiter(ctx context.Context, caller, account string, flag bool) error {
	if err := e.requireOperator(caller); err != nil {
		e.reject("set_arbiter", caller, err)
		return err
	}

	err := e.update(ctx, "set_arbiter", account, func(u *unit) error {
		user, err := u.tx.User(account)
		if err != nil {
			return err
		}
		if user.IsArbiter == flag {
			return fmt.Errorf("%w: arbiter flag of %s is already %t", models.ErrInvalidState, account, flag)
		}
		user.IsArbiter = flag
		user.UpdatedAt = u.now
		u.tx.PutUser(user)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("[ARBITRATION] Arbiter flag changed", zap.String("account", account), zap.Bool("arbiter", flag))
	return nil
}

// User returns a profile.
func (e *Engine) User(account string) (*models.User, error) {
	var out *models.User
	err := e.store.View(func(tx *store.Txn) error {
		var err error
		out, err = tx.User(account)
		return err
	})
	return out, err
}

// Stats returns the trade counters of account.
func (e *Engine) Stats(account string) (*models.TransactionStats, error) {
	var out *models.TransactionStats
	err := e.store.View(func(tx *store.Txn) error {
		var err error
		out, err = tx.Stats(account)
		return err
	})
	return out, err
}

// RankStats lists trade counters, highest first.
func (e *Engine) RankStats(order store.StatsOrder, limit int) []models.TransactionStats {
	return e.store.RankStats(order, limit)
}

// Balance returns the three buckets of account.
func (e *Engine) Balance(account string) (*models.AccountBalance, error) {
	var out *models.AccountBalance
	err := e.store.View(func(tx *store.Txn) error {
		var err error
		out, err = tx.Balance(account)
		return err
	})
	return out, err
}
