package calculator

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/models"
)

// testStore is a store at (lat, 0); with an origin at (0, 0) its distance
// grows with lat.
type testStore struct {
	id  string
	lat float64
}

// buildSnapshot creates a catalog with the given stores and prices, keyed
// as prices[productID][storeID] = "4.49".
func buildSnapshot(t *testing.T, stores []testStore, prices map[string]map[string]string) *catalog.Snapshot {
	t.Helper()
	c := catalog.New()
	for _, st := range stores {
		if err := c.AddStore(models.Store{ID: st.id, Name: "Store " + st.id, Location: models.GeoPoint{Lat: st.lat}}); err != nil {
			t.Fatalf("AddStore(%s) failed: %v", st.id, err)
		}
	}
	var batch []models.PriceObservation
	for productID, byStore := range prices {
		if err := c.AddProduct(models.Product{ID: productID, Name: "Product " + productID}); err != nil {
			t.Fatalf("AddProduct(%s) failed: %v", productID, err)
		}
		for storeID, price := range byStore {
			batch = append(batch, models.PriceObservation{
				ProductID:  productID,
				StoreID:    storeID,
				Price:      decimal.RequireFromString(price),
				ObservedAt: 1700000000,
				Source:     models.SourceScan,
			})
		}
	}
	if err := c.Ingest(batch...); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	return c.Snapshot()
}

var origin = &models.GeoPoint{Lat: 0, Lng: 0}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func TestAggregateStores(t *testing.T) {
	tests := []struct {
		name         string
		stores       []testStore
		prices       map[string]map[string]string
		items        []LineItem
		opts         Options
		wantErr      error
		validateFunc func(t *testing.T, agg *Aggregate)
	}{
		{
			name:   "single item ranks cheapest store first",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{"1": {"A": "4.49", "B": "6.99"}},
			items:  []LineItem{{ProductID: "1", Quantity: 1}},
			opts:   Options{Origin: origin},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if agg.Stores[0].Store.ID != "A" {
					t.Errorf("best store = %s, want A", agg.Stores[0].Store.ID)
				}
				assertDecimal(t, "A total", agg.Stores[0].Total, "4.49")
				assertDecimal(t, "B total", agg.Stores[1].Total, "6.99")
				if agg.PartialData {
					t.Error("expected complete data")
				}
				if agg.Best[0].StoreID != "A" || agg.Best[0].StoresCarrying != 2 {
					t.Errorf("best item = %+v, want store A carried by 2", agg.Best[0])
				}
			},
		},
		{
			name:   "equal totals break ties by distance",
			stores: []testStore{{"A", 0.02}, {"B", 0.01}},
			prices: map[string]map[string]string{
				"1": {"A": "5", "B": "3"},
				"2": {"A": "10", "B": "12"},
			},
			items: []LineItem{{ProductID: "1"}, {ProductID: "2"}},
			opts:  Options{Origin: origin},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if agg.Stores[0].Store.ID != "B" || agg.Stores[1].Store.ID != "A" {
					t.Errorf("ranking = [%s %s], want [B A]", agg.Stores[0].Store.ID, agg.Stores[1].Store.ID)
				}
				assertDecimal(t, "A total", agg.Stores[1].Total, "15")
				assertDecimal(t, "B total", agg.Stores[0].Total, "15")
			},
		},
		{
			name:   "equal totals and no origin break ties by id",
			stores: []testStore{{"Z", 0.01}, {"M", 0.02}},
			prices: map[string]map[string]string{"1": {"Z": "2", "M": "2"}},
			items:  []LineItem{{ProductID: "1"}},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if agg.Stores[0].Store.ID != "M" {
					t.Errorf("best store = %s, want M", agg.Stores[0].Store.ID)
				}
				if agg.Stores[0].DistanceKm != 0 {
					t.Errorf("distance without origin = %v, want 0", agg.Stores[0].DistanceKm)
				}
			},
		},
		{
			name:   "missing price falls back to citywide average",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}, {"C", 0.03}},
			prices: map[string]map[string]string{
				"milk":  {"A": "1.00", "B": "2.00"},
				"bread": {"C": "3.00"},
			},
			items: []LineItem{{ProductID: "milk", Quantity: 2}, {ProductID: "bread"}},
			opts:  Options{Origin: origin},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if !agg.PartialData {
					t.Error("expected PartialData")
				}
				byID := map[string]StoreTotal{}
				for _, st := range agg.Stores {
					byID[st.Store.ID] = st
				}
				// A: milk 2x1.00 + bread avg 3.00
				assertDecimal(t, "A total", byID["A"].Total, "5.00")
				if byID["A"].PricedCount != 1 || len(byID["A"].EstimatedItems) != 1 {
					t.Errorf("A priced=%d estimated=%v", byID["A"].PricedCount, byID["A"].EstimatedItems)
				}
				// C: milk 2x avg 1.50 + bread 3.00
				assertDecimal(t, "C total", byID["C"].Total, "6.00")
				if !byID["C"].Lines[0].Estimated {
					t.Error("C milk should be estimated")
				}
			},
		},
		{
			name:   "items with no observation anywhere are reported unpriced",
			stores: []testStore{{"A", 0.01}},
			prices: map[string]map[string]string{"1": {"A": "1"}},
			items:  []LineItem{{ProductID: "1"}, {ProductID: "ghost"}},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if len(agg.Unpriced) != 1 || agg.Unpriced[0] != "ghost" {
					t.Errorf("Unpriced = %v, want [ghost]", agg.Unpriced)
				}
				if !agg.PartialData {
					t.Error("expected PartialData")
				}
				assertDecimal(t, "A total", agg.Stores[0].Total, "1")
			},
		},
		{
			name:   "duplicate items merge quantities",
			stores: []testStore{{"A", 0.01}},
			prices: map[string]map[string]string{"1": {"A": "2.50"}},
			items:  []LineItem{{ProductID: "1", Quantity: 2}, {ProductID: "1", Quantity: 1}},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if len(agg.Items) != 1 || agg.Items[0].Quantity != 3 {
					t.Errorf("Items = %+v, want one item with quantity 3", agg.Items)
				}
				assertDecimal(t, "A total", agg.Stores[0].Total, "7.50")
			},
		},
		{
			name:   "stores beyond max distance are dropped",
			stores: []testStore{{"near", 0.01}, {"far", 1}},
			prices: map[string]map[string]string{"1": {"near": "9", "far": "1"}},
			items:  []LineItem{{ProductID: "1"}},
			opts:   Options{Origin: origin, MaxDistanceKm: 10},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if len(agg.Stores) != 1 || agg.Stores[0].Store.ID != "near" {
					t.Errorf("stores = %d, want only near", len(agg.Stores))
				}
			},
		},
		{
			name:   "store filter restricts candidates",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{"1": {"A": "1", "B": "2"}},
			items:  []LineItem{{ProductID: "1"}},
			opts:   Options{StoreIDs: []string{"B"}},
			validateFunc: func(t *testing.T, agg *Aggregate) {
				if len(agg.Stores) != 1 || agg.Stores[0].Store.ID != "B" {
					t.Errorf("expected only store B")
				}
			},
		},
		{
			name:    "empty catalog is insufficient data",
			stores:  []testStore{{"A", 0.01}},
			prices:  map[string]map[string]string{},
			items:   []LineItem{{ProductID: "1"}},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "empty list is insufficient data",
			stores:  []testStore{{"A", 0.01}},
			prices:  map[string]map[string]string{"1": {"A": "1"}},
			items:   nil,
			wantErr: ErrInsufficientData,
		},
		{
			name:    "negative quantity is invalid",
			stores:  []testStore{{"A", 0.01}},
			prices:  map[string]map[string]string{"1": {"A": "1"}},
			items:   []LineItem{{ProductID: "1", Quantity: -1}},
			wantErr: ErrInvalidConstraint,
		},
		{
			name:    "unknown store filter is invalid",
			stores:  []testStore{{"A", 0.01}},
			prices:  map[string]map[string]string{"1": {"A": "1"}},
			items:   []LineItem{{ProductID: "1"}},
			opts:    Options{StoreIDs: []string{"nope"}},
			wantErr: ErrInvalidConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := buildSnapshot(t, tt.stores, tt.prices)
			agg, err := AggregateStores(snap, tt.items, tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AggregateStores() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AggregateStores() unexpected error: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, agg)
			}
		})
	}
}

func TestInsufficientDataNamesItems(t *testing.T) {
	snap := buildSnapshot(t, []testStore{{"A", 0}}, map[string]map[string]string{})
	_, err := AggregateStores(snap, []LineItem{{ProductID: "eggs"}, {ProductID: "flour"}}, Options{})

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want *InsufficientDataError", err)
	}
	if len(insufficient.ProductIDs) != 2 || insufficient.ProductIDs[0] != "eggs" {
		t.Errorf("ProductIDs = %v, want [eggs flour]", insufficient.ProductIDs)
	}
}

func TestOptimizeCombo(t *testing.T) {
	tests := []struct {
		name         string
		stores       []testStore
		prices       map[string]map[string]string
		items        []LineItem
		maxStores    int
		comboOpts    ComboOptions
		wantErr      error
		validateFunc func(t *testing.T, agg *Aggregate, combo *Combo)
	}{
		{
			name:      "one store needed reports zero savings",
			stores:    []testStore{{"A", 0.01}, {"B", 0.02}},
			prices:    map[string]map[string]string{"1": {"A": "4.49", "B": "6.99"}},
			items:     []LineItem{{ProductID: "1", Quantity: 1}},
			maxStores: 2,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if combo.Assignments[0].StoreID != "A" {
					t.Errorf("item 1 assigned to %s, want A", combo.Assignments[0].StoreID)
				}
				assertDecimal(t, "total", combo.Total, "4.49")
				assertDecimal(t, "savings", combo.Savings, "0")
			},
		},
		{
			name:   "split across two stores saves money",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{
				"1": {"A": "5", "B": "3"},
				"2": {"A": "10", "B": "12"},
			},
			items:     []LineItem{{ProductID: "1"}, {ProductID: "2"}},
			maxStores: 2,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if combo.Assignments[0].StoreID != "B" || combo.Assignments[1].StoreID != "A" {
					t.Errorf("assignments = %s, %s; want B, A", combo.Assignments[0].StoreID, combo.Assignments[1].StoreID)
				}
				assertDecimal(t, "total", combo.Total, "13")
				assertDecimal(t, "savings", combo.Savings, "2")
				if combo.BestSingle.Store.ID != "A" {
					t.Errorf("best single = %s, want A (nearer on tie)", combo.BestSingle.Store.ID)
				}
			},
		},
		{
			name:   "only one store with observations degenerates to single store",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{
				"1": {"B": "2"},
				"2": {"B": "3"},
			},
			items:     []LineItem{{ProductID: "1"}, {ProductID: "2"}},
			maxStores: 3,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if len(combo.Stores) != 1 || combo.Stores[0].Store.ID != "B" {
					t.Fatalf("stores = %+v, want only B", combo.Stores)
				}
				if !combo.Total.Equal(agg.BestStore().Total) {
					t.Errorf("combo total %s != single total %s", combo.Total, agg.BestStore().Total)
				}
				assertDecimal(t, "savings", combo.Savings, "0")
			},
		},
		{
			name:   "store limit keeps the stores winning most items",
			stores: []testStore{{"s1", 0.01}, {"s2", 0.02}, {"s3", 0.03}},
			prices: map[string]map[string]string{
				"p1": {"s1": "1", "s2": "5", "s3": "5"},
				"p2": {"s1": "1", "s2": "5", "s3": "5"},
				"p3": {"s1": "5", "s2": "1", "s3": "5"},
				"p4": {"s1": "5", "s2": "1", "s3": "5"},
				"p5": {"s1": "5", "s2": "5", "s3": "1"},
			},
			items:     []LineItem{{ProductID: "p1"}, {ProductID: "p2"}, {ProductID: "p3"}, {ProductID: "p4"}, {ProductID: "p5"}},
			maxStores: 2,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if len(combo.Stores) != 2 {
					t.Fatalf("stores = %d, want 2", len(combo.Stores))
				}
				if !combo.Restricted {
					t.Error("expected Restricted")
				}
				if combo.Assignments[4].StoreID != "s1" {
					t.Errorf("p5 assigned to %s, want nearest kept store s1", combo.Assignments[4].StoreID)
				}
				assertDecimal(t, "total", combo.Total, "9")
				assertDecimal(t, "savings", combo.Savings, "8")
			},
		},
		{
			name:   "max stores of one returns best single store",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{
				"1": {"A": "5", "B": "3"},
				"2": {"A": "10", "B": "12"},
			},
			items:     []LineItem{{ProductID: "1"}, {ProductID: "2"}},
			maxStores: 1,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if len(combo.Stores) != 1 {
					t.Fatalf("stores = %d, want 1", len(combo.Stores))
				}
				assertDecimal(t, "total", combo.Total, "15")
				assertDecimal(t, "savings", combo.Savings, "0")
			},
		},
		{
			name:   "travel cost can outweigh the split",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{
				"1": {"A": "5", "B": "3"},
				"2": {"A": "10", "B": "12"},
			},
			items:     []LineItem{{ProductID: "1"}, {ProductID: "2"}},
			maxStores: 2,
			comboOpts: ComboOptions{
				TravelCostPerKm: dec("1"),
				Travel: func(stores []models.Store) float64 {
					return float64(len(stores)) * 2 // 2 km per stop
				},
			},
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				// Split: 13 + 4 travel = 17. Single A: 15 + 2 = 17. Tie goes to fewer stores.
				if len(combo.Stores) != 1 {
					t.Errorf("stores = %d, want single store", len(combo.Stores))
				}
				assertDecimal(t, "travel cost", combo.TravelCost, "2")
				assertDecimal(t, "savings", combo.Savings, "0")
			},
		},
		{
			name:   "estimated items stay at a visited store",
			stores: []testStore{{"A", 0.01}, {"B", 0.02}},
			prices: map[string]map[string]string{
				"1": {"B": "1"},
			},
			items:     []LineItem{{ProductID: "1"}},
			maxStores: 2,
			validateFunc: func(t *testing.T, agg *Aggregate, combo *Combo) {
				if combo.Assignments[0].StoreID != "B" || combo.Assignments[0].Estimated {
					t.Errorf("assignment = %+v, want verified at B", combo.Assignments[0])
				}
			},
		},
		{
			name:      "zero max stores is invalid",
			stores:    []testStore{{"A", 0.01}},
			prices:    map[string]map[string]string{"1": {"A": "1"}},
			items:     []LineItem{{ProductID: "1"}},
			maxStores: 0,
			wantErr:   ErrInvalidConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := buildSnapshot(t, tt.stores, tt.prices)
			agg, err := AggregateStores(snap, tt.items, Options{Origin: origin})
			if err != nil {
				t.Fatalf("AggregateStores() failed: %v", err)
			}
			combo, err := OptimizeCombo(agg, tt.maxStores, tt.comboOpts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("OptimizeCombo() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OptimizeCombo() unexpected error: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, agg, combo)
			}
		})
	}
}

// TestComboProperties checks the optimizer invariants over random catalogs.
func TestComboProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		numStores := 1 + rng.Intn(6)
		numProducts := 1 + rng.Intn(8)

		stores := make([]testStore, numStores)
		for s := range stores {
			stores[s] = testStore{id: fmt.Sprintf("s%d", s), lat: rng.Float64() * 0.1}
		}
		prices := map[string]map[string]string{}
		var items []LineItem
		for p := 0; p < numProducts; p++ {
			productID := fmt.Sprintf("p%d", p)
			byStore := map[string]string{}
			for _, st := range stores {
				if rng.Intn(3) > 0 {
					byStore[st.id] = fmt.Sprintf("%d.%02d", 1+rng.Intn(9), rng.Intn(100))
				}
			}
			if len(byStore) > 0 {
				prices[productID] = byStore
			}
			items = append(items, LineItem{ProductID: productID, Quantity: 1 + rng.Intn(3)})
		}

		snap := buildSnapshot(t, stores, prices)
		agg, err := AggregateStores(snap, items, Options{Origin: origin})
		if errors.Is(err, ErrInsufficientData) {
			continue
		}
		if err != nil {
			t.Fatalf("round %d: AggregateStores() failed: %v", round, err)
		}

		for i := 1; i < len(agg.Stores); i++ {
			if compareStoreTotals(agg.Stores[i-1], agg.Stores[i]) >= 0 {
				t.Fatalf("round %d: ranking not strictly ordered at %d", round, i)
			}
		}

		maxStores := 1 + rng.Intn(3)
		combo, err := OptimizeCombo(agg, maxStores, ComboOptions{})
		if err != nil {
			t.Fatalf("round %d: OptimizeCombo() failed: %v", round, err)
		}

		if combo.Total.GreaterThan(agg.BestStore().Total) {
			t.Errorf("round %d: combo total %s > best single %s", round, combo.Total, agg.BestStore().Total)
		}
		if combo.Savings.IsNegative() {
			t.Errorf("round %d: negative savings %s", round, combo.Savings)
		}
		if len(combo.Stores) > maxStores {
			t.Errorf("round %d: %d stores exceeds max %d", round, len(combo.Stores), maxStores)
		}
		if len(combo.Assignments) != len(agg.Items) {
			t.Errorf("round %d: %d assignments for %d items", round, len(combo.Assignments), len(agg.Items))
		}
		seen := map[string]bool{}
		for _, a := range combo.Assignments {
			if seen[a.ProductID] {
				t.Errorf("round %d: product %s assigned twice", round, a.ProductID)
			}
			seen[a.ProductID] = true
		}
	}
}
