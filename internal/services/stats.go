package services

import (
	"errors"

	"github.com/ruralpay/escrow/internal/models"
)

// recordTrade bumps the counters of a completed trade. Counters only grow.
func recordTrade(u *unit, account string, sell bool) error {
	st, err := u.tx.Stats(account)
	if errors.Is(err, models.ErrNotFound) {
		st = &models.TransactionStats{Account: account}
	} else if err != nil {
		return err
	}

	st.TotalCompleted++
	if sell {
		st.SellsCompleted++
	} else {
		st.BuysCompleted++
	}
	u.tx.PutStats(st)
	return nil
}
