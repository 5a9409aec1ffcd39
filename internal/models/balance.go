package models

import "time"

// AccountBalance holds the three buckets of an account. Available is
// spendable, Locked backs the account's open sell offers and Escrow backs
// accepted trades that are not yet settled.
type AccountBalance struct {
	Account   string    `json:"account"`
	Available int64     `json:"available"`
	Locked    int64     `json:"locked"`
	Escrow    int64     `json:"escrow"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total is the sum of all buckets, i.e. what the escrow holds for the account.
func (b AccountBalance) Total() int64 {
	return b.Available + b.Locked + b.Escrow
}
