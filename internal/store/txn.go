package store

import (
	"fmt"
	"sort"

	"github.com/ruralpay/escrow/internal/models"
)

// Txn stages reads and writes of one unit of work. Getters return copies;
// callers mutate the copy and hand it back through the matching Put.
type Txn struct {
	s        *Store
	nextID   uint64
	balances map[string]*models.AccountBalance
	users    map[string]*models.User
	stats    map[string]*models.TransactionStats
	offers   map[uint64]*models.Offer
	cases    map[uint64]*models.ArbitrationCase
}

func newTxn(s *Store) *Txn {
	return &Txn{
		s:        s,
		nextID:   s.nextID,
		balances: make(map[string]*models.AccountBalance),
		users:    make(map[string]*models.User),
		stats:    make(map[string]*models.TransactionStats),
		offers:   make(map[uint64]*models.Offer),
		cases:    make(map[uint64]*models.ArbitrationCase),
	}
}

func (tx *Txn) commit() {
	s := tx.s
	s.nextID = tx.nextID

	for k, b := range tx.balances {
		s.balances[k] = b
	}
	for k, u := range tx.users {
		s.users[k] = u
	}
	for k, st := range tx.stats {
		s.stats[k] = st
	}
	for k, c := range tx.cases {
		s.cases[k] = c
	}
	for id, o := range tx.offers {
		if old, ok := s.offers[id]; ok {
			for _, ix := range s.indexes {
				ix.remove(old)
			}
		}
		s.offers[id] = o
		for _, ix := range s.indexes {
			ix.put(o)
		}
	}
}

// Balance returns the balance of account.
func (tx *Txn) Balance(account string) (*models.AccountBalance, error) {
	if b, ok := tx.balances[account]; ok {
		c := *b
		return &c, nil
	}
	if b, ok := tx.s.balances[account]; ok {
		c := *b
		return &c, nil
	}
	return nil, fmt.Errorf("%w: balance of %s", models.ErrNotFound, account)
}

func (tx *Txn) PutBalance(b *models.AccountBalance) {
	c := *b
	c.Version++
	tx.balances[b.Account] = &c
}

// User returns the profile of account.
func (tx *Txn) User(account string) (*models.User, error) {
	u, ok := tx.users[account]
	if !ok {
		u, ok = tx.s.users[account]
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, account)
	}
	return cloneUser(u), nil
}

func (tx *Txn) PutUser(u *models.User) {
	tx.users[u.Account] = cloneUser(u)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.ContactMethods = cloneMap(u.ContactMethods)
	c.PaymentMethods = cloneMap(u.PaymentMethods)
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Stats returns the trade counters of account.
func (tx *Txn) Stats(account string) (*models.TransactionStats, error) {
	st, ok := tx.stats[account]
	if !ok {
		st, ok = tx.s.stats[account]
	}
	if !ok {
		return nil, fmt.Errorf("%w: stats of %s", models.ErrNotFound, account)
	}
	c := *st
	return &c, nil
}

func (tx *Txn) PutStats(st *models.TransactionStats) {
	c := *st
	tx.stats[st.Account] = &c
}

// NextOfferID reserves the next offer id. Ids are shared by sell and buy
// offers and never reused.
func (tx *Txn) NextOfferID() uint64 {
	id := tx.nextID
	tx.nextID++
	return id
}

// Offer returns the offer with id.
func (tx *Txn) Offer(id uint64) (*models.Offer, error) {
	o, ok := tx.offers[id]
	if !ok {
		o, ok = tx.s.offers[id]
	}
	if !ok {
		return nil, fmt.Errorf("%w: offer %d", models.ErrNotFound, id)
	}
	return o.Clone(), nil
}

func (tx *Txn) PutOffer(o *models.Offer) {
	tx.offers[o.ID] = o.Clone()
}

// Case returns the arbitration case of a buy offer.
func (tx *Txn) Case(offerID uint64) (*models.ArbitrationCase, error) {
	c, ok := tx.cases[offerID]
	if !ok {
		c, ok = tx.s.cases[offerID]
	}
	if !ok {
		return nil, fmt.Errorf("%w: arbitration case %d", models.ErrNotFound, offerID)
	}
	cp := *c
	return &cp, nil
}

func (tx *Txn) PutCase(c *models.ArbitrationCase) {
	cp := *c
	tx.cases[c.OfferID] = &cp
}

// Query filters the offer table. The most selective populated field picks
// the ordering that is scanned; the remaining fields filter the result.
type Query struct {
	Kind         models.OfferKind
	Seller       string
	Buyer        string
	Status       models.OfferStatus
	SellID       uint64
	TimeZone     string
	FiatCurrency string
	ByPrice      bool
	Limit        int
}

func (q Query) plan() (IndexName, indexKey) {
	switch {
	case q.SellID != 0:
		return IndexBySell, indexKey{n: int64(q.SellID)}
	case q.Status != "" && q.Seller != "":
		return IndexByStatusSeller, indexKey{a: string(q.Status), b: q.Seller}
	case q.Status != "" && q.Buyer != "":
		return IndexByStatusBuyer, indexKey{a: string(q.Status), b: q.Buyer}
	case q.Buyer != "" && q.Seller != "":
		return IndexByBuyerSeller, indexKey{a: q.Buyer, b: q.Seller}
	case q.Seller != "":
		return IndexBySeller, indexKey{a: q.Seller}
	case q.Buyer != "":
		return IndexByBuyer, indexKey{a: q.Buyer}
	case q.TimeZone != "":
		return IndexByTimeZone, indexKey{a: q.TimeZone}
	case q.FiatCurrency != "":
		return IndexByFiatCurrency, indexKey{a: q.FiatCurrency}
	case q.ByPrice:
		return IndexByPrice, indexKey{}
	default:
		return IndexByCreated, indexKey{}
	}
}

func (q Query) matches(o *models.Offer) bool {
	if q.Kind != "" && o.Kind != q.Kind {
		return false
	}
	if q.Seller != "" && o.Seller != q.Seller {
		return false
	}
	if q.Buyer != "" && o.Buyer != q.Buyer {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	if q.SellID != 0 && (o.SellID != q.SellID || !isLiveChild(o)) {
		return false
	}
	if q.TimeZone != "" && o.TimeZone != q.TimeZone {
		return false
	}
	if q.FiatCurrency != "" && o.FiatCurrency != q.FiatCurrency {
		return false
	}
	if q.ByPrice && o.Kind != models.KindSell {
		return false
	}
	return true
}

// Find returns the offers matching q in the order of the scanned index,
// including changes staged on this Txn.
func (tx *Txn) Find(q Query) []*models.Offer {
	name, pivot := q.plan()
	ix := tx.s.indexes[name]

	type hit struct {
		key   indexKey
		offer *models.Offer
	}
	var hits []hit

	for _, id := range ix.ids(pivot) {
		if _, staged := tx.offers[id]; staged {
			continue
		}
		o := tx.s.offers[id]
		if !q.matches(o) {
			continue
		}
		k, _ := ix.key(o)
		hits = append(hits, hit{key: k, offer: o})
	}
	for _, o := range tx.offers {
		k, ok := ix.key(o)
		if !ok || !ix.match(k, pivot) || !q.matches(o) {
			continue
		}
		hits = append(hits, hit{key: k, offer: o})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if ix.reverse {
			return lessKey(hits[j].key, hits[i].key)
		}
		return lessKey(hits[i].key, hits[j].key)
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]*models.Offer, len(hits))
	for i, h := range hits {
		out[i] = h.offer.Clone()
	}
	return out
}

// Children returns the live buy offers placed against a sell offer.
func (tx *Txn) Children(sellID uint64) []*models.Offer {
	return tx.Find(Query{SellID: sellID})
}
