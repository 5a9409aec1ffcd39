package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSellOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "alice", models.TierResident)
	f.deposit(t, "alice", 100)

	t.Run("explicit whitelist", func(t *testing.T) {
		o, err := f.engine.CreateSellOffer(ctx, "alice", SellOfferInput{
			Quantity:        models.Seeds(units(10)),
			PricePercentage: 110,
			PaymentMethods:  []string{"paypal", "paypal"},
			AdditionalInfo:  "evenings only",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"paypal"}, o.PaymentMethods)
		assert.Equal(t, "evenings only", o.Sell.AdditionalInfo)
		assert.Equal(t, o.ID, o.SellID)
		assert.Equal(t, uint64(1), o.Price.RoundID)
	})

	tests := []struct {
		name   string
		caller string
		in     SellOfferInput
		want   error
	}{
		{"more than available", "alice", SellOfferInput{Quantity: models.Seeds(units(91)), PricePercentage: 100}, models.ErrInsufficientFunds},
		{"unknown payment method", "alice", SellOfferInput{Quantity: models.Seeds(units(1)), PricePercentage: 100, PaymentMethods: []string{"cash"}}, models.ErrPolicyViolation},
		{"zero price", "alice", SellOfferInput{Quantity: models.Seeds(units(1))}, models.ErrPolicyViolation},
		{"price above cap", "alice", SellOfferInput{Quantity: models.Seeds(units(1)), PricePercentage: MaxPricePercentage + 1}, models.ErrPolicyViolation},
		{"price wraps int64", "alice", SellOfferInput{Quantity: models.Seeds(units(1)), PricePercentage: 1 << 63}, models.ErrPolicyViolation},
		{"bad asset", "alice", SellOfferInput{Quantity: models.Asset{Amount: 1, Symbol: "TLOS"}, PricePercentage: 100}, models.ErrInvalidAsset},
		{"visitor tier", "bob", SellOfferInput{Quantity: models.Seeds(units(1)), PricePercentage: 100}, models.ErrUnauthorized},
	}
	f.user(t, "bob", models.TierVisitor)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateSellOffer(ctx, tt.caller, tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	b := f.balance(t, "alice")
	assert.Equal(t, units(90), b.Available)
	assert.Equal(t, units(10), b.Locked)
}

func TestCreateSellOffer_NoReferencePrice(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", models.TierResident)
	f.deposit(t, "alice", 100)

	f.engine.prices = emptyFeed{}
	_, err := f.engine.CreateSellOffer(context.Background(), "alice", SellOfferInput{Quantity: models.Seeds(units(10)), PricePercentage: 100})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, units(100), f.balance(t, "alice").Available)
}

func TestCancelSellOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sell := f.listing(t, "alice", 100, 60)
	pending := f.bid(t, "bob", sell.ID, 10)
	accepted := f.bid(t, "dave", sell.ID, 20)
	_, err := f.engine.AcceptBuyOffer(ctx, "alice", accepted.ID)
	require.NoError(t, err)

	_, err = f.engine.CancelSellOffer(ctx, "bob", sell.ID)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	o, err := f.engine.CancelSellOffer(ctx, "alice", sell.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SellCanceled, o.Status)

	b := f.balance(t, "alice")
	assert.Equal(t, units(80), b.Available)
	assert.Equal(t, int64(0), b.Locked)
	assert.Equal(t, units(20), b.Escrow)

	assert.Equal(t, models.BuyRejected, f.offer(t, pending.ID).Status)
	assert.Equal(t, models.BuyAccepted, f.offer(t, accepted.ID).Status)

	t.Run("twice", func(t *testing.T) {
		_, err := f.engine.CancelSellOffer(ctx, "alice", sell.ID)
		assert.True(t, errors.Is(err, models.ErrInvalidState))
		assert.Equal(t, b, f.balance(t, "alice"))
	})

	t.Run("accepted trade still completes", func(t *testing.T) {
		_, err := f.engine.PayBuyOffer(ctx, "dave", accepted.ID)
		require.NoError(t, err)
		_, err = f.engine.ConfirmPayment(ctx, "alice", accepted.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), f.balance(t, "alice").Escrow)
		assert.Equal(t, models.SellCanceled, f.offer(t, sell.ID).Status)
	})

	t.Run("no new proposals", func(t *testing.T) {
		_, err := f.engine.CreateBuyOffer(ctx, "bob", BuyOfferInput{SellID: sell.ID, Quantity: models.Seeds(1), PaymentMethod: "bank"})
		assert.True(t, errors.Is(err, models.ErrInvalidState))
	})
}

func TestCancelSellOffer_NotASellOffer(t *testing.T) {
	f := newFixture(t)
	sell := f.listing(t, "alice", 100, 60)
	buy := f.bid(t, "bob", sell.ID, 10)

	_, err := f.engine.CancelSellOffer(context.Background(), "alice", buy.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestFindOffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cheap := f.listing(t, "alice", 100, 10)
	f.user(t, "zoe", models.TierResident)
	f.deposit(t, "zoe", 50)
	dear, err := f.engine.CreateSellOffer(ctx, "zoe", SellOfferInput{Quantity: models.Seeds(units(5)), PricePercentage: 120})
	require.NoError(t, err)
	bid := f.bid(t, "bob", cheap.ID, 5)

	bySeller := f.engine.FindOffers(store.Query{Seller: "alice"})
	require.Len(t, bySeller, 2)

	sells := f.engine.FindOffers(store.Query{Kind: models.KindSell})
	require.Len(t, sells, 2)
	assert.Equal(t, dear.ID, sells[0].ID, "newest first")

	byPrice := f.engine.FindOffers(store.Query{ByPrice: true})
	require.Len(t, byPrice, 2)
	assert.Equal(t, cheap.ID, byPrice[0].ID)

	pending := f.engine.FindOffers(store.Query{Status: models.BuyPending, Buyer: "bob"})
	require.Len(t, pending, 1)
	assert.Equal(t, bid.ID, pending[0].ID)

	pair := f.engine.FindOffers(store.Query{Buyer: "bob", Seller: "zoe"})
	assert.Empty(t, pair)

	local := f.engine.FindOffers(store.Query{FiatCurrency: "EUR", Kind: models.KindBuy})
	require.Len(t, local, 1)

	children, err := f.engine.Children(cheap.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	_, err = f.engine.Children(bid.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
