// Package calculator implements price comparison over a catalog snapshot:
// per-store totals for a whole list and the multi-store combo optimizer.
// Everything here is a pure function of its inputs.
package calculator

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/geo"
	"github.com/notapoint/backend/internal/models"
)

// LineItem is one product to price and how many units of it.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Options narrows the stores considered for a comparison.
type Options struct {
	// Origin is the shopper's location. Without it every store is at distance 0.
	Origin *models.GeoPoint

	// StoreIDs restricts candidates to these stores. Empty means all stores.
	StoreIDs []string

	// MaxDistanceKm drops stores farther than this from Origin. Zero means no limit.
	MaxDistanceKm float64
}

// ItemPrice is one list item priced at one store.
type ItemPrice struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// Estimated is set when the store has no observation and the citywide
	// average was used instead.
	Estimated bool
	// ObservedAt is the Unix time of the observation used; 0 when estimated.
	ObservedAt int64
}

// StoreTotal is the cost of buying the whole list at one store.
type StoreTotal struct {
	Store      models.Store
	DistanceKm float64
	Total      decimal.Decimal

	// PricedCount is how many items have a verified price at this store.
	PricedCount int

	// EstimatedItems are the product IDs priced at the citywide average.
	EstimatedItems []string

	// Lines are in the same order as Aggregate.Items.
	Lines []ItemPrice
}

// ItemBest is the lowest verified price for one item across candidate stores.
type ItemBest struct {
	ProductID string
	Quantity  int
	// StoreID is empty when no candidate store has a verified price.
	StoreID        string
	UnitPrice      decimal.Decimal
	StoresCarrying int
}

// Aggregate is the per-store price table for a list.
type Aggregate struct {
	// Items are the normalized items that can be priced somewhere.
	Items []LineItem

	// Unpriced are product IDs with no observation at any store. They are
	// left out of every total.
	Unpriced []string

	// Stores are ranked by total, then distance, then store ID.
	Stores []StoreTotal

	// Best has one entry per Items element, same order.
	Best []ItemBest

	// PartialData is set when any total relies on an estimate or some item
	// could not be priced at all.
	PartialData bool
}

// BestStore returns the top-ranked single-store result.
func (a *Aggregate) BestStore() StoreTotal {
	return a.Stores[0]
}

// AggregateStores prices the list at every candidate store.
//
// Missing-price policy: when a store has no observation for an item, the
// item is priced at its citywide average and listed in EstimatedItems.
// Items with no observation anywhere go to Unpriced. Stores without a single
// verified price for the list are not candidates.
func AggregateStores(snap *catalog.Snapshot, items []LineItem, opts Options) (*Aggregate, error) {
	normalized, err := normalize(items)
	if err != nil {
		return nil, err
	}
	candidates, err := candidateStores(snap, opts)
	if err != nil {
		return nil, err
	}

	agg := &Aggregate{}
	for _, item := range normalized {
		if _, ok := snap.CitywideAverage(item.ProductID); ok {
			agg.Items = append(agg.Items, item)
		} else {
			agg.Unpriced = append(agg.Unpriced, item.ProductID)
		}
	}

	for _, c := range candidates {
		st := StoreTotal{
			Store:      c.store,
			DistanceKm: c.distanceKm,
			Total:      decimal.Zero,
			Lines:      make([]ItemPrice, len(agg.Items)),
		}
		for i, item := range agg.Items {
			qty := decimal.NewFromInt(int64(item.Quantity))
			line := ItemPrice{ProductID: item.ProductID, Quantity: item.Quantity}
			if obs, ok := snap.Price(item.ProductID, c.store.ID); ok {
				line.UnitPrice = obs.Price
				line.ObservedAt = obs.ObservedAt
				st.PricedCount++
			} else {
				line.UnitPrice, _ = snap.CitywideAverage(item.ProductID)
				line.Estimated = true
				st.EstimatedItems = append(st.EstimatedItems, item.ProductID)
			}
			line.LineTotal = line.UnitPrice.Mul(qty)
			st.Lines[i] = line
			st.Total = st.Total.Add(line.LineTotal)
		}
		if st.PricedCount == 0 {
			continue
		}
		agg.Stores = append(agg.Stores, st)
	}

	if len(agg.Stores) == 0 {
		ids := make([]string, len(normalized))
		for i, item := range normalized {
			ids[i] = item.ProductID
		}
		return nil, &InsufficientDataError{ProductIDs: ids}
	}

	slices.SortFunc(agg.Stores, compareStoreTotals)

	agg.Best = make([]ItemBest, len(agg.Items))
	for i, item := range agg.Items {
		best := ItemBest{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			StoresCarrying: snap.StoresCarrying(item.ProductID),
		}
		var bestStore *StoreTotal
		for s := range agg.Stores {
			st := &agg.Stores[s]
			line := st.Lines[i]
			if line.Estimated {
				continue
			}
			if bestStore == nil || cheaperAt(line.UnitPrice, st, best.UnitPrice, bestStore) {
				best.StoreID = st.Store.ID
				best.UnitPrice = line.UnitPrice
				bestStore = st
			}
		}
		agg.Best[i] = best
	}

	agg.PartialData = len(agg.Unpriced) > 0
	for _, st := range agg.Stores {
		if len(st.EstimatedItems) > 0 {
			agg.PartialData = true
			break
		}
	}

	return agg, nil
}

// compareStoreTotals orders by total, then distance, then store ID, which
// makes the ranking a total order.
func compareStoreTotals(a, b StoreTotal) int {
	if c := a.Total.Cmp(b.Total); c != 0 {
		return c
	}
	return compareProximity(&a, &b)
}

func compareProximity(a, b *StoreTotal) int {
	if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
		return c
	}
	return cmp.Compare(a.Store.ID, b.Store.ID)
}

// cheaperAt reports whether price p at store s beats price q at store t.
func cheaperAt(p decimal.Decimal, s *StoreTotal, q decimal.Decimal, t *StoreTotal) bool {
	if c := p.Cmp(q); c != 0 {
		return c < 0
	}
	return compareProximity(s, t) < 0
}

func normalize(items []LineItem) ([]LineItem, error) {
	var out []LineItem
	index := make(map[string]int)
	for _, item := range items {
		if item.ProductID == "" {
			return nil, &InvalidConstraintError{Field: "product_id", Value: item.ProductID, Reason: "must not be empty"}
		}
		if item.Quantity < 0 {
			return nil, &InvalidConstraintError{
				Field:  "quantity",
				Value:  item.Quantity,
				Reason: fmt.Sprintf("product %s: must be at least 1", item.ProductID),
			}
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += qty
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, LineItem{ProductID: item.ProductID, Quantity: qty})
	}
	return out, nil
}

type candidate struct {
	store      models.Store
	distanceKm float64
}

func candidateStores(snap *catalog.Snapshot, opts Options) ([]candidate, error) {
	if opts.MaxDistanceKm < 0 {
		return nil, &InvalidConstraintError{Field: "max_distance_km", Value: opts.MaxDistanceKm, Reason: "must not be negative"}
	}
	if opts.Origin != nil && !opts.Origin.Valid() {
		return nil, &InvalidConstraintError{Field: "origin", Value: *opts.Origin, Reason: "coordinates out of range"}
	}

	var stores []models.Store
	if len(opts.StoreIDs) == 0 {
		stores = snap.Stores()
	} else {
		seen := make(map[string]bool)
		for _, id := range opts.StoreIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			st, ok := snap.Store(id)
			if !ok {
				return nil, &InvalidConstraintError{Field: "store_ids", Value: id, Reason: "unknown store"}
			}
			stores = append(stores, st)
		}
	}

	out := make([]candidate, 0, len(stores))
	for _, st := range stores {
		c := candidate{store: st}
		if opts.Origin != nil {
			c.distanceKm = geo.DistanceKm(*opts.Origin, st.Location)
			if opts.MaxDistanceKm > 0 && c.distanceKm > opts.MaxDistanceKm {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}
