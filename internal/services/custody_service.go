package services

import (
	"context"
	"fmt"

	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/models"
	"go.uber.org/zap"
)

// WithdrawMemo is attached to every withdrawal transfer.
const WithdrawMemo = "withdraw"

// ReceiveDeposit credits available for funds that entered custody.
// Notifications not addressed to the custody account, or sent by it, are
// ignored.
func (e *Engine) ReceiveDeposit(ctx context.Context, d custody.Deposit) error {
	if d.To != e.custodyAccount || d.From == e.custodyAccount {
		e.logger.Debug("[CUSTODY] Ignoring transfer not addressed to escrow",
			zap.String("from", d.From),
			zap.String("to", d.To))
		return nil
	}
	if err := d.Quantity.Validate(); err != nil {
		e.reject("deposit", d.From, err)
		return err
	}
	if err := e.requireTier(ctx, d.From, models.TierResident); err != nil {
		e.reject("deposit", d.From, err)
		return err
	}

	err := e.update(ctx, "deposit", d.From, func(u *unit) error {
		if _, err := u.tx.User(d.From); err != nil {
			return err
		}
		return e.ledger.Credit(u, d.From, d.Quantity.Amount)
	})
	if err != nil {
		return err
	}

	e.logger.Info("[CUSTODY] Deposit credited",
		zap.String("account", d.From),
		zap.String("quantity", d.Quantity.String()),
		zap.String("memo", d.Memo))
	return nil
}

// Withdraw debits available and sends the amount back to the caller.
func (e *Engine) Withdraw(ctx context.Context, caller string, quantity models.Asset) error {
	if err := quantity.Validate(); err != nil {
		e.reject("withdraw", caller, err)
		return err
	}

	err := e.update(ctx, "withdraw", caller, func(u *unit) error {
		if err := e.ledger.Debit(u, caller, quantity.Amount); err != nil {
			return err
		}
		e.ledger.Send(u, caller, quantity.Amount, WithdrawMemo)
		return nil
	})
	if err != nil {
		return fmt.Errorf("withdraw %s: %w", quantity, err)
	}

	e.logger.Info("[CUSTODY] Withdrawal queued", zap.String("account", caller), zap.String("quantity", quantity.String()))
	return nil
}
