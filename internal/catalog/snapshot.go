package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/models"
)

// Snapshot is an immutable view of the catalog. All maps are shared between
// snapshots and must never be written after publication.
type Snapshot struct {
	version  uint64
	products map[string]models.Product
	stores   map[string]models.Store
	storeIDs []string

	// prices[productID][storeID] is the current observation for the pair.
	prices   map[string]map[string]models.PriceObservation
	averages map[string]decimal.Decimal

	observations int
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		products: map[string]models.Product{},
		stores:   map[string]models.Store{},
		prices:   map[string]map[string]models.PriceObservation{},
		averages: map[string]decimal.Decimal{},
	}
}

// Version increases by one with every published change.
func (s *Snapshot) Version() uint64 { return s.version }

// Product returns the product with the given ID.
func (s *Snapshot) Product(id string) (models.Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// Products returns all products in no particular order.
func (s *Snapshot) Products() []models.Product {
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}

// Store returns the store with the given ID.
func (s *Snapshot) Store(id string) (models.Store, bool) {
	st, ok := s.stores[id]
	return st, ok
}

// Stores returns all stores ordered by ID.
func (s *Snapshot) Stores() []models.Store {
	out := make([]models.Store, 0, len(s.storeIDs))
	for _, id := range s.storeIDs {
		out = append(out, s.stores[id])
	}
	return out
}

// Price returns the current observation for a product at a store.
func (s *Snapshot) Price(productID, storeID string) (models.PriceObservation, bool) {
	obs, ok := s.prices[productID][storeID]
	return obs, ok
}

// StoresCarrying returns how many stores have a current price for the product.
func (s *Snapshot) StoresCarrying(productID string) int {
	return len(s.prices[productID])
}

// CitywideAverage is the mean of the current price at every store carrying
// the product, rounded to cents. It is the fallback price for stores without
// an observation.
func (s *Snapshot) CitywideAverage(productID string) (decimal.Decimal, bool) {
	avg, ok := s.averages[productID]
	return avg, ok
}

// ObservationCount is the number of observations ingested, including the
// ones superseded by newer readings.
func (s *Snapshot) ObservationCount() int { return s.observations }

func average(byStore map[string]models.PriceObservation) decimal.Decimal {
	sum := decimal.Zero
	for _, obs := range byStore {
		sum = sum.Add(obs.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(byStore)))).Round(2)
}
