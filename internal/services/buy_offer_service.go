package services

import (
	"context"
	"fmt"

	"github.com/ruralpay/escrow/internal/config"
	"github.com/ruralpay/escrow/internal/models"
	"go.uber.org/zap"
)

// BuyOfferInput describes a proposal against one listing.
type BuyOfferInput struct {
	SellID        uint64       `json:"sell_id" validate:"required"`
	Quantity      models.Asset `json:"quantity"`
	PaymentMethod string       `json:"payment_method" validate:"required"`
}

// CreateBuyOffer proposes to buy from a listing. The quantity is checked
// against the listing but not reserved until the seller accepts.
func (e *Engine) CreateBuyOffer(ctx context.Context, caller string, in BuyOfferInput) (*models.Offer, error) {
	if err := in.Quantity.Validate(); err != nil {
		e.reject("create_buy_offer", caller, err)
		return nil, err
	}
	if err := e.requireTier(ctx, caller, models.TierVisitor); err != nil {
		e.reject("create_buy_offer", caller, err)
		return nil, err
	}

	var offer *models.Offer
	err := e.update(ctx, "create_buy_offer", caller, func(u *unit) error {
		if _, err := u.tx.User(caller); err != nil {
			return err
		}
		parent, err := sellOffer(u, in.SellID)
		if err != nil {
			return err
		}
		if parent.Seller == caller {
			return fmt.Errorf("%w: %s cannot buy from their own listing", models.ErrPolicyViolation, caller)
		}
		if parent.Status != models.SellActive {
			return fmt.Errorf("%w: listing %d is %s", models.ErrInvalidState, parent.ID, parent.Status)
		}
		if !parent.AcceptsPaymentMethod(in.PaymentMethod) {
			return fmt.Errorf("%w: listing %d does not accept %q", models.ErrPolicyViolation, parent.ID, in.PaymentMethod)
		}
		if in.Quantity.Amount > parent.Sell.Available {
			return fmt.Errorf("%w: listing %d has %s available", models.ErrInsufficientOfferQuantity,
				parent.ID, models.Seeds(parent.Sell.Available))
		}

		offer = &models.Offer{
			ID:             u.tx.NextOfferID(),
			Kind:           models.KindBuy,
			SellID:         parent.ID,
			Seller:         parent.Seller,
			Buyer:          caller,
			Buy:            &models.BuyTerms{RequestedQuantity: in.Quantity.Amount},
			Price:          parent.Price,
			PaymentMethods: []string{in.PaymentMethod},
			TimeZone:       parent.TimeZone,
			FiatCurrency:   parent.FiatCurrency,
			CreatedAt:      u.now,
		}
		u.open(offer, models.BuyPending)
		u.tx.PutOffer(offer)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("[OFFER] Buy offer created",
		zap.Uint64("offer_id", offer.ID),
		zap.Uint64("sell_id", in.SellID),
		zap.String("account", caller),
		zap.String("quantity", in.Quantity.String()))
	return offer, nil
}

func sellOffer(u *unit, id uint64) (*models.Offer, error) {
	o, err := u.tx.Offer(id)
	if err != nil {
		return nil, err
	}
	if o.Kind != models.KindSell {
		return nil, fmt.Errorf("%w: offer %d is not a sell offer", models.ErrNotFound, id)
	}
	return o, nil
}

func buyOffer(u *unit, id uint64) (*models.Offer, error) {
	o, err := u.tx.Offer(id)
	if err != nil {
		return nil, err
	}
	if o.Kind != models.KindBuy {
		return nil, fmt.Errorf("%w: offer %d is not a buy offer", models.ErrNotFound, id)
	}
	return o, nil
}

func requireSeller(o *models.Offer, caller string) error {
	if o.Seller != caller {
		return fmt.Errorf("%w: %s is not the seller of offer %d", models.ErrUnauthorized, caller, o.ID)
	}
	return nil
}

func requireBuyer(o *models.Offer, caller string) error {
	if o.Buyer != caller {
		return fmt.Errorf("%w: %s is not the buyer of offer %d", models.ErrUnauthorized, caller, o.ID)
	}
	return nil
}

// buyStep runs a seller or buyer transition on a buy offer.
func (e *Engine) buyStep(ctx context.Context, operation, caller string, id uint64, fn func(u *unit, o *models.Offer) error) (*models.Offer, error) {
	var offer *models.Offer
	err := e.update(ctx, operation, caller, func(u *unit) error {
		o, err := buyOffer(u, id)
		if err != nil {
			return err
		}
		if err := fn(u, o); err != nil {
			return err
		}
		u.tx.PutOffer(o)
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("[OFFER] Buy offer updated",
		zap.String("operation", operation),
		zap.Uint64("offer_id", id),
		zap.String("account", caller),
		zap.String("status", string(offer.Status)))
	return offer, nil
}

// AcceptBuyOffer commits the listing's funds to this trade. Availability is
// re-checked here, so of two offers racing for the same quantity only the
// first accepted wins.
func (e *Engine) AcceptBuyOffer(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	return e.buyStep(ctx, "accept_buy_offer", caller, id, func(u *unit, o *models.Offer) error {
		if err := requireSeller(o, caller); err != nil {
			return err
		}
		if err := u.transition(o, models.BuyAccepted); err != nil {
			return err
		}

		parent, err := sellOffer(u, o.SellID)
		if err != nil {
			return err
		}
		qty := o.Buy.RequestedQuantity
		if parent.Sell.Available < qty {
			return fmt.Errorf("%w: listing %d has %s available, offer %d needs %s", models.ErrInsufficientOfferQuantity,
				parent.ID, models.Seeds(parent.Sell.Available), o.ID, models.Seeds(qty))
		}
		if parent.Status != models.SellActive {
			return fmt.Errorf("%w: listing %d is %s", models.ErrInvalidState, parent.ID, parent.Status)
		}

		parent.Sell.Available -= qty
		if parent.Sell.Available == 0 {
			if err := u.transition(parent, models.SellSoldOut); err != nil {
				return err
			}
		}
		u.tx.PutOffer(parent)

		return e.ledger.MoveToEscrow(u, o.Seller, qty)
	})
}

// RejectBuyOffer declines a pending proposal. Nothing was reserved for it.
func (e *Engine) RejectBuyOffer(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	return e.buyStep(ctx, "reject_buy_offer", caller, id, func(u *unit, o *models.Offer) error {
		if err := requireSeller(o, caller); err != nil {
			return err
		}
		return u.transition(o, models.BuyRejected)
	})
}

// CancelBuyOffer withdraws a pending proposal once it is old enough. The
// offer stays as buy.canceled for the record but no longer counts as a
// child of its listing.
func (e *Engine) CancelBuyOffer(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	return e.buyStep(ctx, "cancel_buy_offer", caller, id, func(u *unit, o *models.Offer) error {
		if err := requireBuyer(o, caller); err != nil {
			return err
		}
		if o.Status != models.BuyPending {
			return fmt.Errorf("%w: offer %d is %s", models.ErrInvalidState, o.ID, o.Status)
		}
		ok, err := e.elapsed(config.ParamBuyerCancelMinAge, o.CreatedAt, u.now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: offer %d cannot be canceled yet", models.ErrTooEarly, o.ID)
		}
		return u.transition(o, models.BuyCanceled)
	})
}

// PayBuyOffer records that the buyer sent the off-ledger payment.
func (e *Engine) PayBuyOffer(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	return e.buyStep(ctx, "pay_buy_offer", caller, id, func(u *unit, o *models.Offer) error {
		if err := requireBuyer(o, caller); err != nil {
			return err
		}
		return u.transition(o, models.BuyPaid)
	})
}

// ConfirmPayment completes the trade: escrow is sent to the buyer and both
// parties' stats are incremented. The operator may confirm for the seller.
func (e *Engine) ConfirmPayment(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	return e.buyStep(ctx, "confirm_payment", caller, id, func(u *unit, o *models.Offer) error {
		if !e.IsOperator(caller) {
			if err := requireSeller(o, caller); err != nil {
				return err
			}
		}
		if err := u.transition(o, models.BuySuccessful); err != nil {
			return err
		}
		return e.completeTrade(u, o, true)
	})
}

// completeTrade releases the escrow of o to its buyer and updates stats.
// The seller is only credited with a sale when sellerStats is set.
func (e *Engine) completeTrade(u *unit, o *models.Offer, sellerStats bool) error {
	qty := o.Buy.RequestedQuantity
	memo := fmt.Sprintf("offer %d", o.ID)
	if err := e.ledger.ReleaseEscrow(u, o.Seller, qty, ToAccount(o.Buyer), memo); err != nil {
		return err
	}
	if sellerStats {
		if err := recordTrade(u, o.Seller, true); err != nil {
			return err
		}
	}
	if err := recordTrade(u, o.Buyer, false); err != nil {
		return err
	}
	// The buy offer must be staged before the listing is re-evaluated.
	u.tx.PutOffer(o)
	return settleListing(u, o.SellID)
}

// InitiateArbitration opens a dispute on a paid trade once the cool-down
// since payment has passed.
func (e *Engine) InitiateArbitration(ctx context.Context, caller string, id uint64) (*models.ArbitrationCase, error) {
	var c *models.ArbitrationCase
	_, err := e.buyStep(ctx, "initiate_arbitration", caller, id, func(u *unit, o *models.Offer) error {
		if caller != o.Buyer && caller != o.Seller {
			return fmt.Errorf("%w: %s is not a party to offer %d", models.ErrUnauthorized, caller, o.ID)
		}
		if o.Status != models.BuyPaid {
			return fmt.Errorf("%w: offer %d is %s", models.ErrInvalidState, o.ID, o.Status)
		}
		paidAt, _ := o.StatusAt(models.BuyPaid)
		ok, err := e.elapsed(config.ParamArbitrationCooldown, paidAt, u.now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: arbitration on offer %d opens after the cool-down", models.ErrTooEarly, o.ID)
		}
		if err := u.transition(o, models.BuyArbitrationPending); err != nil {
			return err
		}

		c = &models.ArbitrationCase{
			OfferID:    o.ID,
			Arbiter:    models.ArbiterPending,
			Resolution: models.ResolutionPending,
			CreatedAt:  u.now,
		}
		u.tx.PutCase(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
