package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruralpay/escrow/internal/audit"
	"github.com/ruralpay/escrow/internal/config"
	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/events"
	"github.com/ruralpay/escrow/internal/identity"
	"github.com/ruralpay/escrow/internal/metrics"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/pricing"
	"github.com/ruralpay/escrow/internal/store"
	"go.uber.org/zap"
)

// PricePublisher accepts new reference price rounds from the operator.
type PricePublisher interface {
	Publish(s pricing.Snapshot) error
}

// Deps are the collaborators of the Engine. Store, Params, Identity, Prices
// and Custody are required; the rest fall back to no-op implementations.
type Deps struct {
	Store     *store.Store
	Params    *config.Params
	Identity  identity.Registry
	Prices    pricing.Feed
	Publisher PricePublisher
	Custody   custody.Sender
	Audit     *audit.AuditLogger
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Clock     func() time.Time

	// Operator may confirm on a seller's behalf and run admin operations.
	Operator string

	// CustodyAccount is the account deposits must be addressed to.
	CustodyAccount string
}

// Engine runs the escrow: balance ledger, offer lifecycle, arbitration and
// stats. Every mutating operation is one store unit of work.
type Engine struct {
	store     *store.Store
	params    *config.Params
	identity  identity.Registry
	prices    pricing.Feed
	publisher PricePublisher
	sender    custody.Sender
	audit     *audit.AuditLogger
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	ledger    *Ledger

	operator       string
	custodyAccount string
}

func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Audit == nil {
		d.Audit = audit.NewAuditLogger(d.Logger, nil)
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}

	return &Engine{
		store:          d.Store,
		params:         d.Params,
		identity:       d.Identity,
		prices:         d.Prices,
		publisher:      d.Publisher,
		sender:         d.Custody,
		audit:          d.Audit,
		events:         d.Events,
		metrics:        d.Metrics,
		logger:         d.Logger,
		now:            d.Clock,
		ledger:         &Ledger{},
		operator:       d.Operator,
		custodyAccount: d.CustodyAccount,
	}
}

// unit carries one operation through the store transaction. Side effects
// that must not happen for a rejected operation are collected here and
// released by the engine once the store has committed.
type unit struct {
	ctx       context.Context
	actor     string
	tx        *store.Txn
	now       time.Time
	events    []events.OfferEvent
	transfers []custody.Transfer
	audits    []func(a *audit.AuditLogger)
}

func (u *unit) record(fn func(a *audit.AuditLogger)) {
	u.audits = append(u.audits, fn)
}

// open sets the initial status of a new offer.
func (u *unit) open(o *models.Offer, status models.OfferStatus) {
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{Status: status, At: u.now})
	u.emit(o, "", status)
}

// transition advances o along a documented edge and appends the history
// entry. Any other move is ErrInvalidState.
func (u *unit) transition(o *models.Offer, to models.OfferStatus) error {
	from := o.Status
	if !models.CanTransition(o.Kind, from, to) {
		return fmt.Errorf("%w: offer %d is %s, cannot become %s", models.ErrInvalidState, o.ID, from, to)
	}
	o.Status = to
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{Status: to, At: u.now})
	u.emit(o, from, to)
	return nil
}

func (u *unit) emit(o *models.Offer, from, to models.OfferStatus) {
	u.events = append(u.events, events.OfferEvent{
		OfferID: o.ID,
		Kind:    string(o.Kind),
		SellID:  o.SellID,
		Seller:  o.Seller,
		Buyer:   o.Buyer,
		Actor:   u.actor,
		Amount:  o.Quantity(),
		From:    string(from),
		To:      string(to),
		At:      u.now,
	})
}

// update runs fn as one unit of work. Outbound transfers are issued last,
// still inside the transaction, so a custody failure rolls everything back.
func (e *Engine) update(ctx context.Context, operation, account string, fn func(u *unit) error) error {
	u := &unit{ctx: ctx, actor: account, now: e.now().UTC()}

	err := e.store.Update(func(tx *store.Txn) error {
		u.tx = tx
		if err := fn(u); err != nil {
			return err
		}
		for _, t := range u.transfers {
			if err := e.sender.SendTransfer(ctx, t); err != nil {
				return fmt.Errorf("send transfer to %s: %w", t.To, err)
			}
		}
		return nil
	})
	if err != nil {
		e.reject(operation, account, err)
		return err
	}

	e.flush(ctx, u)
	return nil
}

func (e *Engine) flush(ctx context.Context, u *unit) {
	for _, ev := range u.events {
		e.metrics.Transitions.WithLabelValues(ev.Kind, ev.To).Inc()
		e.audit.LogTransition(ev.OfferID, ev.Actor, ev.From, ev.To, ev.Amount)
	}
	for _, t := range u.transfers {
		e.metrics.Transfers.Inc()
		e.audit.LogTransfer(t.ID, t.To, t.Quantity.Amount, t.Memo)
	}
	for _, fn := range u.audits {
		fn(e.audit)
	}

	if len(u.events) == 0 {
		return
	}
	if err := e.events.Publish(ctx, u.events...); err != nil {
		e.logger.Warn("[OFFER] Failed to publish offer events", zap.Int("count", len(u.events)), zap.Error(err))
	}
}

func (e *Engine) reject(operation, account string, err error) {
	reason := Reason(err)
	e.metrics.Rejections.WithLabelValues(operation, reason).Inc()
	if reason == "internal" {
		e.logger.Error("Operation failed", zap.String("operation", operation), zap.String("account", account), zap.Error(err))
		e.audit.LogError(operation, account, err)
		return
	}
	e.logger.Info("Operation rejected",
		zap.String("operation", operation),
		zap.String("account", account),
		zap.String("reason", reason),
		zap.Error(err))
}

// Reason names the error kind of err for metrics and HTTP mapping.
func Reason(err error) string {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrNotFound), errors.Is(err, config.ErrParamNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrInsufficientOfferQuantity):
		return "insufficient_offer_quantity"
	case errors.Is(err, models.ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, models.ErrTooEarly):
		return "too_early"
	case errors.Is(err, models.ErrPolicyViolation), errors.Is(err, config.ErrParamType):
		return "policy_violation"
	default:
		return "internal"
	}
}

// requireTier asks the identity registry whether account holds tier.
func (e *Engine) requireTier(ctx context.Context, account, tier string) error {
	ok, err := e.identity.StatusAtLeast(ctx, account, tier)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not at least %s", models.ErrUnauthorized, account, tier)
	}
	return nil
}

// IsOperator reports whether account is the escrow operator.
func (e *Engine) IsOperator(account string) bool {
	return account != "" && account == e.operator
}

func (e *Engine) requireOperator(caller string) error {
	if !e.IsOperator(caller) {
		return fmt.Errorf("%w: %s is not the operator", models.ErrUnauthorized, caller)
	}
	return nil
}

// elapsed reports whether at least the duration stored under key has passed
// since since.
func (e *Engine) elapsed(key string, since, now time.Time) (bool, error) {
	d, err := e.params.Duration(key)
	if err != nil {
		return false, err
	}
	return !now.Before(since.Add(d)), nil
}
