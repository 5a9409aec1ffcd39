package models

import "time"

// ArbiterPending marks a case no arbiter has taken yet.
const ArbiterPending = "pending"

// Resolution is the state of an arbitration case.
type Resolution string

const (
	ResolutionPending        Resolution = "pending"
	ResolutionInProgress     Resolution = "inprogress"
	ResolutionResolvedSeller Resolution = "resolved.seller"
	ResolutionResolvedBuyer  Resolution = "resolved.buyer"
)

// ArbitrationCase is keyed by the disputed buy offer id. Cases are never
// deleted.
type ArbitrationCase struct {
	OfferID         uint64     `json:"offer_id"`
	Arbiter         string     `json:"arbiter"`
	Resolution      Resolution `json:"resolution"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	BuyerContacted  bool       `json:"buyer_contacted"`
	SellerContacted bool       `json:"seller_contacted"`
}
