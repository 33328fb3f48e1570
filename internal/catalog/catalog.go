// Package catalog holds the current known prices per (product, store).
//
// Readers take a Snapshot and compute against it without locking; writers
// build a new snapshot copy-on-write and publish it atomically, so an
// in-flight comparison never observes a half-applied ingestion.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/notapoint/backend/internal/models"
)

var (
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownStore       = errors.New("unknown store")
	ErrInvalidObservation = errors.New("invalid price observation")
	ErrInvalidProduct     = errors.New("invalid product")
	ErrInvalidStore       = errors.New("invalid store")
	ErrDuplicate          = errors.New("already exists in catalog")
)

// Catalog is the in-memory price catalog. The zero value is not usable; call New.
type Catalog struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
}

// New creates an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	c.current.Store(emptySnapshot())
	return c
}

// Snapshot returns the current immutable catalog view.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// AddProduct registers a product.
func (c *Catalog) AddProduct(p models.Product) error {
	if p.ID == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidProduct)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	if _, exists := old.products[p.ID]; exists {
		return fmt.Errorf("product %s: %w", p.ID, ErrDuplicate)
	}

	next := *old
	next.version++
	next.products = maps.Clone(old.products)
	next.products[p.ID] = p
	c.current.Store(&next)
	return nil
}

// AddStore registers a store.
func (c *Catalog) AddStore(st models.Store) error {
	if st.ID == "" || strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidStore)
	}
	if !st.Location.Valid() {
		return fmt.Errorf("%w: location %v out of range", ErrInvalidStore, st.Location)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	if _, exists := old.stores[st.ID]; exists {
		return fmt.Errorf("store %s: %w", st.ID, ErrDuplicate)
	}

	next := *old
	next.version++
	next.stores = maps.Clone(old.stores)
	next.stores[st.ID] = st
	next.storeIDs = append(slices.Clone(old.storeIDs), st.ID)
	slices.Sort(next.storeIDs)
	c.current.Store(&next)
	return nil
}

// Validate checks an observation against the current snapshot without
// applying it.
func (c *Catalog) Validate(obs models.PriceObservation) error {
	return validate(c.current.Load(), obs)
}

func validate(s *Snapshot, obs models.PriceObservation) error {
	if _, ok := s.products[obs.ProductID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, obs.ProductID)
	}
	if _, ok := s.stores[obs.StoreID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, obs.StoreID)
	}
	if !obs.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidObservation, obs.Price)
	}
	if obs.ObservedAt <= 0 {
		return fmt.Errorf("%w: observed_at is required", ErrInvalidObservation)
	}
	if _, err := models.ParseSource(string(obs.Source)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}
	return nil
}

// Ingest applies observations atomically: either all of them become
// visible in one new snapshot or, if any is invalid, none do. An
// observation older than the current one for its pair is counted but does
// not change the current price.
func (c *Catalog) Ingest(observations ...models.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	for i, obs := range observations {
		if err := validate(old, obs); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
	}

	next := *old
	next.version++
	next.prices = maps.Clone(old.prices)
	next.averages = maps.Clone(old.averages)
	next.observations += len(observations)

	touched := make(map[string]bool)
	for _, obs := range observations {
		byStore, cloned := next.prices[obs.ProductID], touched[obs.ProductID]
		if !cloned {
			byStore = maps.Clone(byStore)
			if byStore == nil {
				byStore = make(map[string]models.PriceObservation)
			}
			next.prices[obs.ProductID] = byStore
			touched[obs.ProductID] = true
		}

		// Equal timestamps resolve to the later-ingested reading.
		if cur, ok := byStore[obs.StoreID]; ok && obs.ObservedAt < cur.ObservedAt {
			slog.Debug("Ignoring stale observation",
				"product_id", obs.ProductID,
				"store_id", obs.StoreID,
				"observed_at", obs.ObservedAt,
				"current_observed_at", cur.ObservedAt,
			)
			continue
		}
		byStore[obs.StoreID] = obs
	}

	for productID := range touched {
		next.averages[productID] = average(next.prices[productID])
	}

	c.current.Store(&next)
	return nil
}
