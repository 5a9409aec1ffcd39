package services

import (
	"errors"
	"fmt"

	"github.com/ruralpay/escrow/internal/audit"
	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/models"
)

// Destination says where escrowed funds go when they are released.
type Destination struct {
	recipient string
	bucket    string
}

// ToAccount sends released funds out of custody to recipient.
func ToAccount(recipient string) Destination { return Destination{recipient: recipient} }

var (
	// BackToLocked returns released funds to the seller's open listing.
	BackToLocked = Destination{bucket: "locked"}
	// BackToAvailable returns released funds to the seller's spendable balance.
	BackToAvailable = Destination{bucket: "available"}
)

// Ledger moves amounts between the three buckets of an account. Each call
// stages its change on the unit of work that triggered it, so a balance
// mutation commits together with the offer change that caused it.
type Ledger struct{}

// load returns the staged or committed balance. An account that never
// received funds has no balance to take from and is ErrNotFound.
func (l *Ledger) load(u *unit, account string) (*models.AccountBalance, error) {
	return u.tx.Balance(account)
}

// loadOrOpen is load for credits, opening a zero balance on first use.
func (l *Ledger) loadOrOpen(u *unit, account string) (*models.AccountBalance, error) {
	b, err := u.tx.Balance(account)
	if errors.Is(err, models.ErrNotFound) {
		return &models.AccountBalance{Account: account}, nil
	}
	return b, err
}

func (l *Ledger) save(u *unit, b *models.AccountBalance, operation string, amount int64) {
	b.UpdatedAt = u.now
	u.tx.PutBalance(b)
	account := b.Account
	u.record(func(a *audit.AuditLogger) { a.LogBalance(operation, account, amount) })
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", models.ErrInvalidAsset, amount)
	}
	return nil
}

func insufficient(account, bucket string, have, want int64) error {
	return fmt.Errorf("%w: %s %s is %s, need %s", models.ErrInsufficientFunds, account, bucket,
		models.Seeds(have), models.Seeds(want))
}

// Credit increases available. Used when funds enter custody.
func (l *Ledger) Credit(u *unit, account string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.loadOrOpen(u, account)
	if err != nil {
		return err
	}
	b.Available += amount
	l.save(u, b, "CREDIT", amount)
	return nil
}

// Debit decreases available.
func (l *Ledger) Debit(u *unit, account string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.load(u, account)
	if err != nil {
		return err
	}
	if b.Available < amount {
		return insufficient(account, "available", b.Available, amount)
	}
	b.Available -= amount
	l.save(u, b, "DEBIT", amount)
	return nil
}

// ReserveForSale moves amount from available to locked.
func (l *Ledger) ReserveForSale(u *unit, account string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.load(u, account)
	if err != nil {
		return err
	}
	if b.Available < amount {
		return insufficient(account, "available", b.Available, amount)
	}
	b.Available -= amount
	b.Locked += amount
	l.save(u, b, "RESERVE", amount)
	return nil
}

// ReleaseFromSale moves amount from locked back to available.
func (l *Ledger) ReleaseFromSale(u *unit, account string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.load(u, account)
	if err != nil {
		return err
	}
	if b.Locked < amount {
		return insufficient(account, "locked", b.Locked, amount)
	}
	b.Locked -= amount
	b.Available += amount
	l.save(u, b, "RELEASE", amount)
	return nil
}

// MoveToEscrow moves amount from locked to escrow.
func (l *Ledger) MoveToEscrow(u *unit, account string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.load(u, account)
	if err != nil {
		return err
	}
	if b.Locked < amount {
		return insufficient(account, "locked", b.Locked, amount)
	}
	b.Locked -= amount
	b.Escrow += amount
	l.save(u, b, "ESCROW", amount)
	return nil
}

// ReleaseEscrow decreases escrow. The amount either leaves custody toward
// the destination account or returns to one of the seller's own buckets.
func (l *Ledger) ReleaseEscrow(u *unit, account string, amount int64, dest Destination, memo string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	b, err := l.load(u, account)
	if err != nil {
		return err
	}
	if b.Escrow < amount {
		return insufficient(account, "escrow", b.Escrow, amount)
	}
	b.Escrow -= amount

	switch {
	case dest.recipient != "":
		l.Send(u, dest.recipient, amount, memo)
	case dest.bucket == "locked":
		b.Locked += amount
	case dest.bucket == "available":
		b.Available += amount
	default:
		return fmt.Errorf("release escrow of %s: no destination", account)
	}

	l.save(u, b, "RELEASE_ESCROW", amount)
	return nil
}

// Send queues an outbound transfer on the unit of work.
func (l *Ledger) Send(u *unit, to string, amount int64, memo string) {
	u.transfers = append(u.transfers, custody.NewTransfer(to, models.Seeds(amount), memo))
}
