package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sellOffer(tx *Txn, seller string, pct uint64, at time.Time) *models.Offer {
	o := &models.Offer{
		ID:           tx.NextOfferID(),
		Kind:         models.KindSell,
		Seller:       seller,
		Sell:         &models.SellTerms{TotalOffered: 100, Available: 100},
		Price:        models.PriceInfo{PricePercentage: pct},
		TimeZone:     "UTC",
		FiatCurrency: "USD",
		CreatedAt:    at,
		Status:       models.SellActive,
	}
	tx.PutOffer(o)
	return o
}

func buyOffer(tx *Txn, parent *models.Offer, buyer string, at time.Time) *models.Offer {
	o := &models.Offer{
		ID:           tx.NextOfferID(),
		Kind:         models.KindBuy,
		SellID:       parent.ID,
		Seller:       parent.Seller,
		Buyer:        buyer,
		Buy:          &models.BuyTerms{RequestedQuantity: 10},
		TimeZone:     parent.TimeZone,
		FiatCurrency: parent.FiatCurrency,
		CreatedAt:    at,
		Status:       models.BuyPending,
	}
	tx.PutOffer(o)
	return o
}

func ids(offers []*models.Offer) []uint64 {
	out := make([]uint64, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.Update(func(tx *Txn) error {
		tx.PutBalance(&models.AccountBalance{Account: "alice", Available: 10})
		sellOffer(tx, "alice", 100, base)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(func(tx *Txn) error {
		_, err := tx.Balance("alice")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = tx.Offer(1)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Equal(t, uint64(1), tx.NextOfferID(), "ids of a failed unit are not consumed")
		return nil
	})
	require.NoError(t, err)
}

func TestTxn_GettersReturnCopies(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *Txn) error {
		tx.PutUser(&models.User{Account: "alice", PaymentMethods: map[string]string{"bank": "IBAN"}})
		sellOffer(tx, "alice", 100, base)
		return nil
	}))

	require.NoError(t, s.View(func(tx *Txn) error {
		u, err := tx.User("alice")
		require.NoError(t, err)
		u.PaymentMethods["bank"] = "changed"

		o, err := tx.Offer(1)
		require.NoError(t, err)
		o.Sell.Available = 0
		return nil
	}))

	require.NoError(t, s.View(func(tx *Txn) error {
		u, _ := tx.User("alice")
		assert.Equal(t, "IBAN", u.PaymentMethods["bank"])
		o, _ := tx.Offer(1)
		assert.Equal(t, int64(100), o.Sell.Available)
		return nil
	}))
}

func TestTxn_BalanceVersion(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(func(tx *Txn) error {
			b, err := tx.Balance("alice")
			if errors.Is(err, models.ErrNotFound) {
				b = &models.AccountBalance{Account: "alice"}
			}
			b.Available += 5
			tx.PutBalance(b)
			return nil
		}))
	}
	require.NoError(t, s.View(func(tx *Txn) error {
		b, err := tx.Balance("alice")
		require.NoError(t, err)
		assert.Equal(t, int64(15), b.Available)
		assert.Equal(t, 3, b.Version)
		return nil
	}))
}

func TestFind(t *testing.T) {
	s := New()
	var listing, other *models.Offer
	require.NoError(t, s.Update(func(tx *Txn) error {
		listing = sellOffer(tx, "alice", 105, base)
		other = sellOffer(tx, "carol", 95, base.Add(time.Minute))
		buyOffer(tx, listing, "bob", base.Add(2*time.Minute))
		buyOffer(tx, listing, "dave", base.Add(3*time.Minute))
		buyOffer(tx, other, "bob", base.Add(4*time.Minute))
		return nil
	}))

	tests := []struct {
		name  string
		query Query
		want  []uint64
	}{
		{"newest first", Query{}, []uint64{5, 4, 3, 2, 1}},
		{"limit", Query{Limit: 2}, []uint64{5, 4}},
		{"kind", Query{Kind: models.KindSell}, []uint64{2, 1}},
		{"seller", Query{Seller: "alice"}, []uint64{1, 3, 4}},
		{"buyer", Query{Buyer: "bob"}, []uint64{3, 5}},
		{"buyer and seller", Query{Buyer: "bob", Seller: "carol"}, []uint64{5}},
		{"status and seller", Query{Status: models.BuyPending, Seller: "alice"}, []uint64{3, 4}},
		{"children", Query{SellID: listing.ID}, []uint64{3, 4}},
		{"by price", Query{ByPrice: true}, []uint64{2, 1}},
		{"fiat currency", Query{FiatCurrency: "EUR"}, []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []*models.Offer
			require.NoError(t, s.View(func(tx *Txn) error {
				got = tx.Find(tt.query)
				return nil
			}))
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFind_SeesStagedChanges(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *Txn) error {
		p := sellOffer(tx, "alice", 100, base)
		buyOffer(tx, p, "bob", base)
		return nil
	}))

	require.NoError(t, s.Update(func(tx *Txn) error {
		o, err := tx.Offer(2)
		require.NoError(t, err)
		o.Status = models.BuyAccepted
		tx.PutOffer(o)

		assert.Empty(t, tx.Find(Query{Status: models.BuyPending, Seller: "alice"}))
		assert.Equal(t, []uint64{2}, ids(tx.Find(Query{Status: models.BuyAccepted, Seller: "alice"})))
		return nil
	}))

	require.NoError(t, s.View(func(tx *Txn) error {
		assert.Empty(t, tx.Find(Query{Status: models.BuyPending, Seller: "alice"}), "stale index entry removed on commit")
		assert.Len(t, tx.Find(Query{Status: models.BuyAccepted, Seller: "alice"}), 1)
		return nil
	}))
}

func TestChildren_ExcludesCanceled(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *Txn) error {
		p := sellOffer(tx, "alice", 100, base)
		buyOffer(tx, p, "bob", base)
		c := buyOffer(tx, p, "dave", base)
		c.Status = models.BuyCanceled
		tx.PutOffer(c)
		return nil
	}))

	require.NoError(t, s.View(func(tx *Txn) error {
		assert.Equal(t, []uint64{2}, ids(tx.Children(1)))
		o, err := tx.Offer(3)
		require.NoError(t, err, "canceled buy offers stay readable")
		assert.Equal(t, models.BuyCanceled, o.Status)
		return nil
	}))
}

func TestRankStats(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *Txn) error {
		tx.PutStats(&models.TransactionStats{Account: "alice", TotalCompleted: 3, SellsCompleted: 3})
		tx.PutStats(&models.TransactionStats{Account: "bob", TotalCompleted: 4, SellsCompleted: 1, BuysCompleted: 3})
		tx.PutStats(&models.TransactionStats{Account: "carol", TotalCompleted: 3, BuysCompleted: 3})
		return nil
	}))

	accounts := func(stats []models.TransactionStats) []string {
		var out []string
		for _, st := range stats {
			out = append(out, st.Account)
		}
		return out
	}
	assert.Equal(t, []string{"bob", "alice", "carol"}, accounts(s.RankStats(StatsByTotal, 0)))
	assert.Equal(t, []string{"alice", "bob", "carol"}, accounts(s.RankStats(StatsBySells, 0)))
	assert.Equal(t, []string{"bob", "carol"}, accounts(s.RankStats(StatsByBuys, 2)))
}

func TestCasesAndReset(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(func(tx *Txn) error {
		tx.PutCase(&models.ArbitrationCase{OfferID: 9, Arbiter: "judy", Resolution: models.ResolutionInProgress})
		tx.PutCase(&models.ArbitrationCase{OfferID: 4, Arbiter: models.ArbiterPending, Resolution: models.ResolutionPending})
		sellOffer(tx, "alice", 100, base)
		return nil
	}))

	assert.Len(t, s.Cases("", ""), 2)
	assert.Equal(t, uint64(4), s.Cases("", "")[0].OfferID)
	assert.Len(t, s.Cases(models.ResolutionPending, ""), 1)
	assert.Len(t, s.Cases("", "judy"), 1)

	s.Reset()
	assert.Empty(t, s.Cases("", ""))
	require.NoError(t, s.View(func(tx *Txn) error {
		assert.Empty(t, tx.Find(Query{}))
		assert.Equal(t, uint64(1), tx.NextOfferID())
		return nil
	}))
}
