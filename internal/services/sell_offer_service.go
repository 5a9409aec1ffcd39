package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/pricing"
	"go.uber.org/zap"
)

// MaxPricePercentage caps the markup a listing may ask over the reference
// price (100 is the reference price itself).
const MaxPricePercentage = 10000

// SellOfferInput describes a new listing.
type SellOfferInput struct {
	Quantity        models.Asset `json:"quantity"`
	PricePercentage uint64       `json:"price_percentage" validate:"required,gt=0,max=10000"`
	PaymentMethods  []string     `json:"payment_methods"`
	AdditionalInfo  string       `json:"additional_info" validate:"max=512"`
}

// CreateSellOffer locks quantity from the seller's available balance and
// opens a listing priced against the current reference round.
func (e *Engine) CreateSellOffer(ctx context.Context, caller string, in SellOfferInput) (*models.Offer, error) {
	if err := in.Quantity.Validate(); err != nil {
		e.reject("create_sell_offer", caller, err)
		return nil, err
	}
	if in.PricePercentage == 0 || in.PricePercentage > MaxPricePercentage {
		err := fmt.Errorf("%w: price percentage must be between 1 and %d", models.ErrPolicyViolation, MaxPricePercentage)
		e.reject("create_sell_offer", caller, err)
		return nil, err
	}
	if err := e.requireTier(ctx, caller, models.TierResident); err != nil {
		e.reject("create_sell_offer", caller, err)
		return nil, err
	}
	snapshot, err := e.prices.Current(ctx)
	if err != nil {
		e.reject("create_sell_offer", caller, err)
		return nil, err
	}

	var offer *models.Offer
	err = e.update(ctx, "create_sell_offer", caller, func(u *unit) error {
		seller, err := u.tx.User(caller)
		if err != nil {
			return err
		}
		methods, err := whitelist(seller, in.PaymentMethods)
		if err != nil {
			return err
		}

		amount := in.Quantity.Amount
		if err := e.ledger.ReserveForSale(u, caller, amount); err != nil {
			return err
		}

		id := u.tx.NextOfferID()
		offer = &models.Offer{
			ID:     id,
			Kind:   models.KindSell,
			SellID: id,
			Seller: caller,
			Sell: &models.SellTerms{
				TotalOffered:   amount,
				Available:      amount,
				AdditionalInfo: in.AdditionalInfo,
			},
			Price:          pricing.Quote(snapshot, in.PricePercentage),
			PaymentMethods: methods,
			TimeZone:       seller.TimeZone,
			FiatCurrency:   seller.FiatCurrency,
			CreatedAt:      u.now,
		}
		u.open(offer, models.SellActive)
		u.tx.PutOffer(offer)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("[OFFER] Sell offer created",
		zap.Uint64("offer_id", offer.ID),
		zap.String("account", caller),
		zap.String("quantity", in.Quantity.String()),
		zap.Uint64("price_percentage", in.PricePercentage))
	return offer, nil
}

// whitelist resolves the payment methods of a listing against the seller's
// profile. An empty request means every method on the profile.
func whitelist(seller *models.User, requested []string) ([]string, error) {
	if len(requested) == 0 {
		for m := range seller.PaymentMethods {
			requested = append(requested, m)
		}
		sort.Strings(requested)
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: %s has no payment methods", models.ErrPolicyViolation, seller.Account)
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, m := range requested {
		if _, ok := seller.PaymentMethods[m]; !ok {
			return nil, fmt.Errorf("%w: payment method %q is not on the profile of %s", models.ErrPolicyViolation, m, seller.Account)
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// CancelSellOffer closes an active listing. Its remaining quantity returns
// from locked to available and every pending buy offer is rejected; trades
// already accepted carry on.
func (e *Engine) CancelSellOffer(ctx context.Context, caller string, id uint64) (*models.Offer, error) {
	var offer *models.Offer
	var rejected int
	err := e.update(ctx, "cancel_sell_offer", caller, func(u *unit) error {
		o, err := u.tx.Offer(id)
		if err != nil {
			return err
		}
		if o.Kind != models.KindSell {
			return fmt.Errorf("%w: offer %d is not a sell offer", models.ErrNotFound, id)
		}
		if o.Seller != caller {
			return fmt.Errorf("%w: %s is not the seller of offer %d", models.ErrUnauthorized, caller, id)
		}
		if err := u.transition(o, models.SellCanceled); err != nil {
			return err
		}

		if remaining := o.Sell.Available; remaining > 0 {
			if err := e.ledger.ReleaseFromSale(u, o.Seller, remaining); err != nil {
				return err
			}
			o.Sell.Available = 0
		}
		u.tx.PutOffer(o)

		for _, child := range u.tx.Children(id) {
			if child.Status != models.BuyPending {
				continue
			}
			if err := u.transition(child, models.BuyRejected); err != nil {
				return err
			}
			u.tx.PutOffer(child)
			rejected++
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("[OFFER] Sell offer canceled",
		zap.Uint64("offer_id", id),
		zap.String("account", caller),
		zap.Int("rejected_children", rejected))
	return offer, nil
}

// settleListing moves a sold out listing to successful once its successful
// children account for everything it offered.
func settleListing(u *unit, sellID uint64) error {
	parent, err := u.tx.Offer(sellID)
	if err != nil {
		return err
	}
	if parent.Status != models.SellSoldOut {
		return nil
	}

	var sold int64
	for _, child := range u.tx.Children(sellID) {
		if child.Status == models.BuySuccessful {
			sold += child.Buy.RequestedQuantity
		}
	}
	if sold != parent.Sell.TotalOffered {
		return nil
	}
	if err := u.transition(parent, models.SellSuccessful); err != nil {
		return err
	}
	u.tx.PutOffer(parent)
	return nil
}
