// Package compare is the read boundary the presentation layer consumes:
// single-store ranking and multi-store combos over one catalog snapshot.
package compare

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/calculator"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/route"
)

// Outcome labels reported to an Observer.
const (
	OutcomeOK               = "ok"
	OutcomePartial          = "partial"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeInvalid          = "invalid"
	OutcomeError            = "error"
)

// SnapshotSource publishes catalog snapshots.
type SnapshotSource interface {
	Snapshot() *catalog.Snapshot
}

// Planner orders a set of stores into a route.
type Planner interface {
	Plan(ctx context.Context, origin *models.GeoPoint, stores []models.Store) route.Route
	TravelKm(origin *models.GeoPoint, stores []models.Store) float64
}

// Observer is told the outcome of every comparison.
type Observer interface {
	ObserveComparison(kind, outcome string)
}

// Config holds comparison limits.
type Config struct {
	// DefaultMaxStores is used when a combo request does not name a limit.
	DefaultMaxStores int
	// MaxStoresLimit caps what a request may ask for.
	MaxStoresLimit int
	// TravelCostPerKm turns combo travel distance into money. Zero ignores
	// travel when choosing a combo.
	TravelCostPerKm decimal.Decimal
}

// Request describes what to compare.
type Request struct {
	Items         []calculator.LineItem
	Origin        *models.GeoPoint
	StoreIDs      []string
	MaxDistanceKm float64
}

// SingleStoreResult ranks stores for the whole list.
type SingleStoreResult struct {
	CatalogVersion uint64
	Stores         []calculator.StoreTotal
	Best           []calculator.ItemBest
	Unpriced       []string
	PartialData    bool
}

// ComboResult is a multi-store split with its route.
type ComboResult struct {
	CatalogVersion uint64
	Combo          *calculator.Combo
	Unpriced       []string
	Route          route.Route
}

// Comparer runs comparisons. It never mutates the catalog and is safe for
// concurrent use.
type Comparer struct {
	catalog  SnapshotSource
	planner  Planner
	cfg      Config
	observer Observer
}

// NewComparer creates a comparer. observer may be nil.
func NewComparer(src SnapshotSource, planner Planner, cfg Config, observer Observer) *Comparer {
	if cfg.DefaultMaxStores < 1 {
		cfg.DefaultMaxStores = calculator.DefaultMaxStores
	}
	if cfg.MaxStoresLimit < cfg.DefaultMaxStores {
		cfg.MaxStoresLimit = cfg.DefaultMaxStores
	}
	return &Comparer{catalog: src, planner: planner, cfg: cfg, observer: observer}
}

// DefaultMaxStores is the store limit used when a request names none.
func (c *Comparer) DefaultMaxStores() int { return c.cfg.DefaultMaxStores }

// ItemsFromList returns the line items a stored list compares: its checked
// items.
func ItemsFromList(list *models.ShoppingList) []calculator.LineItem {
	checked := list.CheckedItems()
	items := make([]calculator.LineItem, len(checked))
	for i, it := range checked {
		items[i] = calculator.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return items
}

func (r Request) options() calculator.Options {
	return calculator.Options{Origin: r.Origin, StoreIDs: r.StoreIDs, MaxDistanceKm: r.MaxDistanceKm}
}

func (r Request) validate() error {
	if r.Origin != nil && !r.Origin.Valid() {
		return &calculator.InvalidConstraintError{Field: "location", Value: *r.Origin, Reason: "latitude or longitude out of range"}
	}
	if r.MaxDistanceKm < 0 {
		return &calculator.InvalidConstraintError{Field: "max_distance_km", Value: r.MaxDistanceKm, Reason: "must not be negative"}
	}
	return nil
}

// CompareSingleStore prices the list at every candidate store, cheapest
// first.
func (c *Comparer) CompareSingleStore(ctx context.Context, req Request) (*SingleStoreResult, error) {
	res, err := c.compareSingleStore(ctx, req)
	c.observe("single", res != nil && res.PartialData, err)
	return res, err
}

func (c *Comparer) compareSingleStore(ctx context.Context, req Request) (*SingleStoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	snap := c.catalog.Snapshot()
	agg, err := calculator.AggregateStores(snap, req.Items, req.options())
	if err != nil {
		return nil, err
	}
	return &SingleStoreResult{
		CatalogVersion: snap.Version(),
		Stores:         agg.Stores,
		Best:           agg.Best,
		Unpriced:       agg.Unpriced,
		PartialData:    agg.PartialData,
	}, nil
}

// CompareCombo splits the list across at most maxStores stores and plans a
// route through them.
func (c *Comparer) CompareCombo(ctx context.Context, req Request, maxStores int) (*ComboResult, error) {
	res, err := c.compareCombo(ctx, req, maxStores)
	c.observe("combo", res != nil && res.Combo.PartialData, err)
	return res, err
}

func (c *Comparer) compareCombo(ctx context.Context, req Request, maxStores int) (*ComboResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxStores > c.cfg.MaxStoresLimit {
		return nil, &calculator.InvalidConstraintError{
			Field:  "max_stores",
			Value:  maxStores,
			Reason: "exceeds the server limit",
		}
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	snap := c.catalog.Snapshot()
	agg, err := calculator.AggregateStores(snap, req.Items, req.options())
	if err != nil {
		return nil, err
	}

	opts := calculator.ComboOptions{TravelCostPerKm: c.cfg.TravelCostPerKm}
	if c.planner != nil && c.cfg.TravelCostPerKm.IsPositive() {
		opts.Travel = func(stores []models.Store) float64 {
			return c.planner.TravelKm(req.Origin, stores)
		}
	}
	combo, err := calculator.OptimizeCombo(agg, maxStores, opts)
	if err != nil {
		return nil, err
	}

	res := &ComboResult{
		CatalogVersion: snap.Version(),
		Combo:          combo,
		Unpriced:       agg.Unpriced,
	}
	if c.planner != nil {
		stores := make([]models.Store, len(combo.Stores))
		for i, st := range combo.Stores {
			stores[i] = st.Store
		}
		res.Route = c.planner.Plan(ctx, req.Origin, stores)
	}
	return res, nil
}

func (c *Comparer) observe(kind string, partial bool, err error) {
	if c.observer == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case errors.Is(err, calculator.ErrInsufficientData):
		outcome = OutcomeInsufficientData
	case errors.Is(err, calculator.ErrInvalidConstraint):
		outcome = OutcomeInvalid
	case err != nil:
		outcome = OutcomeError
	case partial:
		outcome = OutcomePartial
	}
	c.observer.ObserveComparison(kind, outcome)
}
