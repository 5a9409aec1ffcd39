package models

import "time"

// Identity tiers reported by the reputation registry, in ascending order.
const (
	TierVisitor  = "visitor"
	TierResident = "resident"
	TierCitizen  = "citizen"
)

// TierRank orders tiers; unknown tiers rank below visitor.
func TierRank(tier string) int {
	switch tier {
	case TierVisitor:
		return 1
	case TierResident:
		return 2
	case TierCitizen:
		return 3
	default:
		return 0
	}
}

// User is the escrow profile of an account.
type User struct {
	Account        string            `json:"account"`
	ContactMethods map[string]string `json:"contact_methods"`
	PaymentMethods map[string]string `json:"payment_methods"`
	TimeZone       string            `json:"time_zone"`
	FiatCurrency   string            `json:"fiat_currency"`
	IsArbiter      bool              `json:"is_arbiter"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TransactionStats counts completed trades. Counters never decrease.
type TransactionStats struct {
	Account        string `json:"account"`
	TotalCompleted uint64 `json:"total_completed"`
	SellsCompleted uint64 `json:"sells_completed"`
	BuysCompleted  uint64 `json:"buys_completed"`
}
