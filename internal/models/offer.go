package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferKind tags the payload carried by an Offer.
type OfferKind string

const (
	KindSell OfferKind = "sell"
	KindBuy  OfferKind = "buy"
)

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

// Sell offer statuses
const (
	SellActive     OfferStatus = "sell.active"
	SellSoldOut    OfferStatus = "sell.soldout"
	SellSuccessful OfferStatus = "sell.successful"
	SellCanceled   OfferStatus = "sell.canceled"
)

// Buy offer statuses
const (
	BuyPending               OfferStatus = "buy.pending"
	BuyAccepted              OfferStatus = "buy.accepted"
	BuyRejected              OfferStatus = "buy.rejected"
	BuyCanceled              OfferStatus = "buy.canceled"
	BuyPaid                  OfferStatus = "buy.paid"
	BuySuccessful            OfferStatus = "buy.successful"
	BuyArbitrationPending    OfferStatus = "buy.arbitration.pending"
	BuyArbitrationInProgress OfferStatus = "buy.arbitration.inprogress"
	BuyResolvedSeller        OfferStatus = "buy.resolved.seller"
	BuyResolvedBuyer         OfferStatus = "buy.resolved.buyer"
)

var transitions = map[OfferKind]map[OfferStatus][]OfferStatus{
	KindSell: {
		SellActive:  {SellSoldOut, SellCanceled},
		SellSoldOut: {SellSuccessful, SellActive},
	},
	KindBuy: {
		BuyPending:               {BuyAccepted, BuyRejected, BuyCanceled},
		BuyAccepted:              {BuyPaid},
		BuyPaid:                  {BuySuccessful, BuyArbitrationPending},
		BuyArbitrationPending:    {BuyArbitrationInProgress},
		BuyArbitrationInProgress: {BuyResolvedSeller, BuyResolvedBuyer},
		BuyResolvedBuyer:         {BuySuccessful},
	},
}

// CanTransition reports whether from→to is a documented edge for kind.
func CanTransition(kind OfferKind, from, to OfferStatus) bool {
	for _, s := range transitions[kind][from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusEntry is one record of the append-only status history.
type StatusEntry struct {
	Status OfferStatus `json:"status"`
	At     time.Time   `json:"at"`
}

// PriceInfo is captured when a sell offer is created and copied to its buy
// offers, so later reference price rounds never change an open offer.
type PriceInfo struct {
	PricePercentage uint64          `json:"price_percentage"`
	ReferenceRate   decimal.Decimal `json:"reference_rate"`
	RoundID         uint64          `json:"round_id"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

// SellTerms is the payload of a sell offer.
type SellTerms struct {
	TotalOffered   int64  `json:"total_offered"`
	Available      int64  `json:"available"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// BuyTerms is the payload of a buy offer.
type BuyTerms struct {
	RequestedQuantity int64 `json:"requested_quantity"`
}

// Offer is the shared envelope of sell and buy offers. Exactly one of Sell
// or Buy is set, matching Kind.
type Offer struct {
	ID             uint64        `json:"id"`
	Kind           OfferKind     `json:"kind"`
	SellID         uint64        `json:"sell_id"`
	Seller         string        `json:"seller"`
	Buyer          string        `json:"buyer,omitempty"`
	Sell           *SellTerms    `json:"sell,omitempty"`
	Buy            *BuyTerms     `json:"buy,omitempty"`
	Price          PriceInfo     `json:"price"`
	PaymentMethods []string      `json:"payment_methods"`
	TimeZone       string        `json:"time_zone"`
	FiatCurrency   string        `json:"fiat_currency"`
	CreatedAt      time.Time     `json:"created_at"`
	Status         OfferStatus   `json:"status"`
	StatusHistory  []StatusEntry `json:"status_history"`
}

// Clone returns a deep copy, safe to mutate inside a unit of work.
func (o *Offer) Clone() *Offer {
	c := *o
	if o.Sell != nil {
		s := *o.Sell
		c.Sell = &s
	}
	if o.Buy != nil {
		b := *o.Buy
		c.Buy = &b
	}
	c.PaymentMethods = append([]string(nil), o.PaymentMethods...)
	c.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	return &c
}

// StatusAt returns when the offer last entered status.
func (o *Offer) StatusAt(status OfferStatus) (time.Time, bool) {
	for i := len(o.StatusHistory) - 1; i >= 0; i-- {
		if o.StatusHistory[i].Status == status {
			return o.StatusHistory[i].At, true
		}
	}
	return time.Time{}, false
}

// Quantity is the amount the offer is about: total offered for a sell
// offer, requested quantity for a buy offer.
func (o *Offer) Quantity() int64 {
	if o.Kind == KindSell && o.Sell != nil {
		return o.Sell.TotalOffered
	}
	if o.Buy != nil {
		return o.Buy.RequestedQuantity
	}
	return 0
}

// AcceptsPaymentMethod reports whether method is on the offer's whitelist.
func (o *Offer) AcceptsPaymentMethod(method string) bool {
	for _, m := range o.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
