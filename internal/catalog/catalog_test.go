package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapoint/backend/internal/models"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New()
	require.NoError(t, c.AddProduct(models.Product{ID: "milk", Name: "Milk", Category: "Dairy"}))
	require.NoError(t, c.AddProduct(models.Product{ID: "bread", Name: "Bread", Category: "Bakery"}))
	require.NoError(t, c.AddStore(models.Store{ID: "b-store", Name: "B", Location: models.GeoPoint{Lat: 52.52, Lng: 13.40}}))
	require.NoError(t, c.AddStore(models.Store{ID: "a-store", Name: "A", Location: models.GeoPoint{Lat: 52.50, Lng: 13.41}}))
	return c
}

func obs(product, store, price string, at int64) models.PriceObservation {
	return models.PriceObservation{
		ProductID:  product,
		StoreID:    store,
		Price:      decimal.RequireFromString(price),
		ObservedAt: at,
		Source:     models.SourceManual,
	}
}

func TestCatalog_LatestObservationWins(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.Ingest(obs("milk", "a-store", "1.20", 100)))
	require.NoError(t, c.Ingest(obs("milk", "a-store", "1.35", 200)))
	require.NoError(t, c.Ingest(obs("milk", "a-store", "0.99", 150))) // stale

	got, ok := c.Snapshot().Price("milk", "a-store")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1.35")), "price = %s", got.Price)
	assert.Equal(t, 3, c.Snapshot().ObservationCount())
}

func TestCatalog_EqualTimestampPrefersLaterIngest(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.Ingest(
		obs("milk", "a-store", "1.00", 100),
		obs("milk", "a-store", "1.10", 100),
	))

	got, _ := c.Snapshot().Price("milk", "a-store")
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1.10")))
}

func TestCatalog_CitywideAverage(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.Ingest(
		obs("milk", "a-store", "1.00", 100),
		obs("milk", "b-store", "2.00", 100),
		obs("bread", "a-store", "1.00", 100),
		obs("bread", "b-store", "1.00", 100),
	))
	require.NoError(t, c.Ingest(obs("bread", "b-store", "1.01", 200)))

	snap := c.Snapshot()
	avg, ok := snap.CitywideAverage("milk")
	require.True(t, ok)
	assert.Equal(t, "1.5", avg.String())

	avg, ok = snap.CitywideAverage("bread")
	require.True(t, ok)
	assert.Equal(t, "1.01", avg.String(), "1.005 rounds half away from zero")

	_, ok = snap.CitywideAverage("unknown")
	assert.False(t, ok)
}

func TestCatalog_IngestIsAllOrNothing(t *testing.T) {
	c := newTestCatalog(t)
	before := c.Snapshot()

	err := c.Ingest(
		obs("milk", "a-store", "1.00", 100),
		obs("milk", "nowhere", "1.00", 100),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStore))

	assert.Same(t, before, c.Snapshot())
	_, ok := c.Snapshot().Price("milk", "a-store")
	assert.False(t, ok)
}

func TestCatalog_Validate(t *testing.T) {
	c := newTestCatalog(t)

	tests := []struct {
		name    string
		obs     models.PriceObservation
		wantErr error
	}{
		{name: "valid", obs: obs("milk", "a-store", "1.00", 1)},
		{name: "unknown product", obs: obs("cheese", "a-store", "1.00", 1), wantErr: ErrUnknownProduct},
		{name: "unknown store", obs: obs("milk", "z-store", "1.00", 1), wantErr: ErrUnknownStore},
		{name: "zero price", obs: obs("milk", "a-store", "0", 1), wantErr: ErrInvalidObservation},
		{name: "negative price", obs: obs("milk", "a-store", "-2", 1), wantErr: ErrInvalidObservation},
		{name: "missing time", obs: obs("milk", "a-store", "1.00", 0), wantErr: ErrInvalidObservation},
		{
			name: "bad source",
			obs: models.PriceObservation{
				ProductID: "milk", StoreID: "a-store",
				Price: decimal.NewFromInt(1), ObservedAt: 1, Source: "ocr",
			},
			wantErr: ErrInvalidObservation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.obs)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCatalog_StoresSortedAndDuplicatesRejected(t *testing.T) {
	c := newTestCatalog(t)

	stores := c.Snapshot().Stores()
	require.Len(t, stores, 2)
	assert.Equal(t, "a-store", stores[0].ID)
	assert.Equal(t, "b-store", stores[1].ID)

	err := c.AddStore(models.Store{ID: "a-store", Name: "Again"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = c.AddStore(models.Store{ID: "c-store", Name: "C", Location: models.GeoPoint{Lat: 91}})
	assert.ErrorIs(t, err, ErrInvalidStore)

	err = c.AddProduct(models.Product{ID: "milk", Name: "Milk"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCatalog_SnapshotIsolation(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.Ingest(obs("milk", "a-store", "1.00", 100)))

	old := c.Snapshot()
	require.NoError(t, c.Ingest(obs("milk", "a-store", "2.00", 200), obs("milk", "b-store", "3.00", 200)))

	got, _ := old.Price("milk", "a-store")
	assert.Equal(t, "1", got.Price.String())
	assert.Equal(t, 1, old.StoresCarrying("milk"))
	assert.Equal(t, 2, c.Snapshot().StoresCarrying("milk"))
	assert.Greater(t, c.Snapshot().Version(), old.Version())
}

func TestCatalog_ConcurrentReadersAndWriter(t *testing.T) {
	c := newTestCatalog(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 200; i++ {
			_ = c.Ingest(obs("milk", "a-store", "1.00", i), obs("milk", "b-store", "3.00", i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := c.Snapshot()
				// Both prices land in the same snapshot, never one without the other.
				_, a := snap.Price("milk", "a-store")
				_, b := snap.Price("milk", "b-store")
				if a != b {
					t.Errorf("observed half-applied ingestion at version %d", snap.Version())
					return
				}
			}
		}()
	}
	wg.Wait()
}

type fakeSource struct {
	products     []*models.Product
	stores       []*models.Store
	observations []*models.PriceObservation
}

func (f *fakeSource) ListProducts(context.Context) ([]*models.Product, error) { return f.products, nil }
func (f *fakeSource) ListStores(context.Context) ([]*models.Store, error)     { return f.stores, nil }
func (f *fakeSource) ListObservations(context.Context) ([]*models.PriceObservation, error) {
	return f.observations, nil
}

func TestLoad(t *testing.T) {
	first := obs("milk", "s1", "1.00", 100)
	second := obs("milk", "s1", "1.50", 200)
	src := &fakeSource{
		products:     []*models.Product{{ID: "milk", Name: "Milk"}},
		stores:       []*models.Store{{ID: "s1", Name: "Store 1"}},
		observations: []*models.PriceObservation{&first, &second},
	}

	c, err := Load(context.Background(), src)
	require.NoError(t, err)

	got, ok := c.Snapshot().Price("milk", "s1")
	require.True(t, ok)
	assert.Equal(t, "1.5", got.Price.String())
	assert.Equal(t, 2, c.Snapshot().ObservationCount())
}
