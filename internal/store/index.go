package store

import (
	"github.com/ruralpay/escrow/internal/models"
	"github.com/tidwall/btree"
)

// indexKey is the composite sort key shared by all offer orderings. Each
// index decides which components it fills; id always breaks ties.
type indexKey struct {
	a  string
	b  string
	n  int64
	id uint64
}

func lessKey(x, y indexKey) bool {
	if x.a != y.a {
		return x.a < y.a
	}
	if x.b != y.b {
		return x.b < y.b
	}
	if x.n != y.n {
		return x.n < y.n
	}
	return x.id < y.id
}

// IndexName identifies a secondary ordering over the offer table.
type IndexName string

const (
	IndexBySeller       IndexName = "byseller"
	IndexByBuyer        IndexName = "bybuyer"
	IndexByStatusSeller IndexName = "bystatusseller"
	IndexByStatusBuyer  IndexName = "bystatusbuyer"
	IndexByBuyerSeller  IndexName = "bybuyerseller"
	IndexByCreated      IndexName = "bycreated"
	IndexBySell         IndexName = "bysell"
	IndexByTimeZone     IndexName = "bytimezone"
	IndexByFiatCurrency IndexName = "byfiatcurrency"
	IndexByPrice        IndexName = "byprice"
)

type index struct {
	tree *btree.BTreeG[indexKey]
	// key derives the entry of o, false when o is not part of the ordering.
	key func(o *models.Offer) (indexKey, bool)
	// match reports whether k shares the fixed components of pivot p.
	match func(k, p indexKey) bool
	// reverse scans newest first.
	reverse bool
}

func (ix *index) put(o *models.Offer) {
	if k, ok := ix.key(o); ok {
		ix.tree.Set(k)
	}
}

func (ix *index) remove(o *models.Offer) {
	if k, ok := ix.key(o); ok {
		ix.tree.Delete(k)
	}
}

func (ix *index) ids(pivot indexKey) []uint64 {
	var ids []uint64
	if ix.reverse {
		ix.tree.Reverse(func(k indexKey) bool {
			ids = append(ids, k.id)
			return true
		})
		return ids
	}
	ix.tree.Ascend(pivot, func(k indexKey) bool {
		if !ix.match(k, pivot) {
			return false
		}
		ids = append(ids, k.id)
		return true
	})
	return ids
}

func matchA(k, p indexKey) bool { return k.a == p.a }
func matchAB(k, p indexKey) bool { return k.a == p.a && k.b == p.b }
func matchN(k, p indexKey) bool { return k.n == p.n }
func matchAll(_, _ indexKey) bool { return true }

func isLiveChild(o *models.Offer) bool {
	return o.Kind == models.KindBuy && o.Status != models.BuyCanceled
}

func newIndexes() map[IndexName]*index {
	mk := func(key func(o *models.Offer) (indexKey, bool), match func(k, p indexKey) bool) *index {
		return &index{tree: btree.NewBTreeG[indexKey](lessKey), key: key, match: match}
	}

	ixs := map[IndexName]*index{
		IndexBySeller: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: o.Seller, id: o.ID}, true
		}, matchA),
		IndexByBuyer: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: o.Buyer, id: o.ID}, o.Kind == models.KindBuy
		}, matchA),
		IndexByStatusSeller: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: string(o.Status), b: o.Seller, id: o.ID}, true
		}, matchAB),
		IndexByStatusBuyer: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: string(o.Status), b: o.Buyer, id: o.ID}, o.Kind == models.KindBuy
		}, matchAB),
		IndexByBuyerSeller: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: o.Buyer, b: o.Seller, id: o.ID}, o.Kind == models.KindBuy
		}, matchAB),
		IndexBySell: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{n: int64(o.SellID), id: o.ID}, isLiveChild(o)
		}, matchN),
		IndexByTimeZone: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: o.TimeZone, id: o.ID}, true
		}, matchA),
		IndexByFiatCurrency: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{a: o.FiatCurrency, id: o.ID}, true
		}, matchA),
		IndexByPrice: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{n: int64(o.Price.PricePercentage), id: o.ID}, o.Kind == models.KindSell
		}, matchAll),
		IndexByCreated: mk(func(o *models.Offer) (indexKey, bool) {
			return indexKey{n: o.CreatedAt.UnixNano(), id: o.ID}, true
		}, matchAll),
	}
	ixs[IndexByCreated].reverse = true
	return ixs
}
