package services

import (
	"context"
	"testing"
	"time"

	"github.com/ruralpay/escrow/internal/config"
	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/events"
	"github.com/ruralpay/escrow/internal/identity"
	"github.com/ruralpay/escrow/internal/metrics"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/pricing"
	"github.com/ruralpay/escrow/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evs ...events.OfferEvent) error {
	args := m.Called(ctx, evs)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) StatusAtLeast(ctx context.Context, account, tier string) (bool, error) {
	args := m.Called(ctx, account, tier)
	return args.Bool(0), args.Error(1)
}

// units converts whole SEEDS to base units.
func units(n int64) int64 { return n * 10000 }

type fixture struct {
	engine  *Engine
	store   *store.Store
	ids     *identity.MemoryRegistry
	feed    *pricing.MemoryFeed
	queue   *custody.MemoryQueue
	params  *config.Params
	metrics *metrics.Metrics
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   store.New(),
		ids:     identity.NewMemoryRegistry(),
		feed:    pricing.NewMemoryFeed(),
		queue:   custody.NewMemoryQueue(),
		params:  config.DefaultParams(&config.Config{CancelAge: 24 * time.Hour, Cooldown: 72 * time.Hour}),
		metrics: metrics.New(),
		now:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.feed.Publish(pricing.Snapshot{SeedsPerUSD: decimal.NewFromInt(50), RoundID: 1}))

	f.engine = NewEngine(Deps{
		Store:          f.store,
		Params:         f.params,
		Identity:       f.ids,
		Prices:         f.feed,
		Publisher:      f.feed,
		Custody:        f.queue,
		Metrics:        f.metrics,
		Clock:          func() time.Time { return f.now },
		Operator:       "operator",
		CustodyAccount: "escrow",
	})
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) user(t *testing.T, account, tier string) {
	t.Helper()
	f.ids.Set(account, tier)
	_, err := f.engine.UpsertUser(context.Background(), account, ProfileInput{
		ContactMethods: map[string]string{"email": account + "@example.com"},
		PaymentMethods: map[string]string{"bank": "IBAN " + account, "paypal": account + "@paypal"},
		TimeZone:       "Europe/Berlin",
		FiatCurrency:   "EUR",
	})
	require.NoError(t, err)
}

func (f *fixture) deposit(t *testing.T, account string, seeds int64) {
	t.Helper()
	require.NoError(t, f.engine.ReceiveDeposit(context.Background(), custody.Deposit{
		From:     account,
		To:       "escrow",
		Quantity: models.Seeds(units(seeds)),
		Memo:     "deposit",
	}))
}

func (f *fixture) balance(t *testing.T, account string) models.AccountBalance {
	t.Helper()
	b, err := f.engine.Balance(account)
	require.NoError(t, err)
	return *b
}

func (f *fixture) offer(t *testing.T, id uint64) *models.Offer {
	t.Helper()
	o, err := f.engine.Offer(id)
	require.NoError(t, err)
	return o
}

// listing creates a seller with a funded listing of qty out of deposited.
func (f *fixture) listing(t *testing.T, seller string, deposited, qty int64) *models.Offer {
	t.Helper()
	f.user(t, seller, models.TierResident)
	f.deposit(t, seller, deposited)
	o, err := f.engine.CreateSellOffer(context.Background(), seller, SellOfferInput{
		Quantity:        models.Seeds(units(qty)),
		PricePercentage: 95,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) bid(t *testing.T, buyer string, sellID uint64, qty int64) *models.Offer {
	t.Helper()
	if _, err := f.engine.User(buyer); err != nil {
		f.user(t, buyer, models.TierVisitor)
	}
	o, err := f.engine.CreateBuyOffer(context.Background(), buyer, BuyOfferInput{
		SellID:        sellID,
		Quantity:      models.Seeds(units(qty)),
		PaymentMethod: "bank",
	})
	require.NoError(t, err)
	return o
}

type emptyFeed struct{}

func (emptyFeed) Current(context.Context) (pricing.Snapshot, error) {
	return pricing.Snapshot{}, models.ErrNotFound
}
