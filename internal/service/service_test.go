package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapoint/backend/internal/auth"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/compare"
	"github.com/notapoint/backend/internal/middleware"
	"github.com/notapoint/backend/internal/route"
	"github.com/notapoint/backend/internal/storage/sqlite"
	"github.com/notapoint/backend/pkg/api"
	"github.com/notapoint/backend/pkg/api/apiconnect"
	"github.com/notapoint/backend/pkg/logging"
)

type testEnv struct {
	auth    apiconnect.AuthServiceClient
	catalog apiconnect.CatalogServiceClient
	lists   apiconnect.ShoppingListServiceClient
	compare apiconnect.CompareServiceClient

	store *sqlite.SQLiteStore
	cat   *catalog.Catalog
}

func newTestEnv(t *testing.T, limiter *middleware.KeyedLimiter) *testEnv {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Load(context.Background(), store)
	require.NoError(t, err)

	metrics := middleware.NewMetrics(prometheus.NewRegistry())
	comparer := compare.NewComparer(cat, route.NewEstimator(route.Config{}, nil),
		compare.Config{DefaultMaxStores: 3, MaxStoresLimit: 5}, metrics)

	mux := http.NewServeMux()
	Mount(mux, Deps{
		Store:    store,
		Catalog:  cat,
		Comparer: comparer,
		JWT:      auth.NewJWTManager("test-secret", time.Hour),
		Limiter:  limiter,
		Metrics:  metrics,
		Logger:   logging.Discard(),
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{
		auth:    apiconnect.NewAuthServiceClient(srv.Client(), srv.URL),
		catalog: apiconnect.NewCatalogServiceClient(srv.Client(), srv.URL),
		lists:   apiconnect.NewShoppingListServiceClient(srv.Client(), srv.URL),
		compare: apiconnect.NewCompareServiceClient(srv.Client(), srv.URL),
		store:   store,
		cat:     cat,
	}
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
	}))
	require.NoError(t, err)
	return resp.Msg.Token
}

// seed creates stores A (nearer the origin) and B with
// (1,A)=5 (2,A)=10 (1,B)=3 (2,B)=12; product 3 has no price.
func (e *testEnv) seed(t *testing.T, token string) {
	t.Helper()
	ctx := context.Background()
	for _, st := range []struct {
		id  string
		lat float64
	}{{"A", 0.01}, {"B", 0.02}} {
		_, err := e.catalog.CreateStore(ctx, withToken(&api.CreateStoreRequest{
			ID: st.id, Name: "Mercado " + st.id, Location: &api.Location{Lat: st.lat},
		}, token))
		require.NoError(t, err)
	}
	for _, id := range []string{"1", "2", "3"} {
		_, err := e.catalog.CreateProduct(ctx, withToken(&api.CreateProductRequest{ID: id, Name: "Product " + id}, token))
		require.NoError(t, err)
	}
	for _, p := range []struct{ product, store, price string }{
		{"1", "A", "5"}, {"2", "A", "10"}, {"1", "B", "3"}, {"2", "B", "12"},
	} {
		_, err := e.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{
			ProductID: p.product, StoreID: p.store, Price: decimal.RequireFromString(p.price),
		}, token))
		require.NoError(t, err)
	}
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}

func TestAuthService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	token := env.register(t, "ana@example.com")
	require.NotEmpty(t, token)

	_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "ana@example.com", Password: "another password"}))
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "bo@example.com", Password: "short"}))
	assertCode(t, err, connect.CodeInvalidArgument)

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ANA@example.com", Password: "correct horse battery"}))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", login.Msg.User.Email)

	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ana@example.com", Password: "wrong password"}))
	assertCode(t, err, connect.CodeUnauthenticated)

	me, err := env.auth.GetCurrentUser(ctx, withToken(&api.GetCurrentUserRequest{}, login.Msg.Token))
	require.NoError(t, err)
	assert.Equal(t, login.Msg.User.ID, me.Msg.User.ID)

	_, err = env.auth.GetCurrentUser(ctx, withToken(&api.GetCurrentUserRequest{}, ""))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestCompareService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	token := env.register(t, "ana@example.com")
	env.seed(t, token)

	items := []*api.CompareItem{{ProductID: "1", Quantity: 1}, {ProductID: "2", Quantity: 1}}
	home := &api.Location{Lat: 0, Lng: 0}

	t.Run("single store", func(t *testing.T) {
		resp, err := env.compare.CompareSingleStore(ctx, connect.NewRequest(&api.CompareSingleStoreRequest{
			CompareScope: api.CompareScope{Items: items, Location: home},
		}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Stores, 2)
		assert.Equal(t, "A", resp.Msg.Stores[0].Store.ID)
		assert.True(t, resp.Msg.Stores[0].Total.Equal(decimal.NewFromInt(15)))
		assert.False(t, resp.Msg.PartialData)
		require.Len(t, resp.Msg.BestPrices, 2)
		assert.Equal(t, "B", resp.Msg.BestPrices[0].StoreID)
	})

	t.Run("combo", func(t *testing.T) {
		maxStores := 2
		resp, err := env.compare.CompareCombo(ctx, connect.NewRequest(&api.CompareComboRequest{
			CompareScope: api.CompareScope{Items: items, Location: home},
			MaxStores:    &maxStores,
		}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Total.Equal(decimal.NewFromInt(13)))
		assert.True(t, resp.Msg.Savings.Equal(decimal.NewFromInt(2)))
		assert.Len(t, resp.Msg.Stores, 2)
		require.Len(t, resp.Msg.Route.Stops, 2)
		assert.Equal(t, "A", resp.Msg.Route.Stops[0].StoreID)
		assert.Greater(t, resp.Msg.Route.TotalKm, 0.0)
		assert.Zero(t, resp.Msg.TravelKm, "travel is not priced in this environment")
		assert.True(t, resp.Msg.TravelCost.IsZero())
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := env.compare.CompareCombo(ctx, connect.NewRequest(&api.CompareComboRequest{
			CompareScope: api.CompareScope{Items: []*api.CompareItem{{ProductID: "3"}}},
		}))
		assertCode(t, err, connect.CodeFailedPrecondition)
		var cerr *connect.Error
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "insufficient_data", cerr.Meta().Get(ErrorKindHeader))
	})

	t.Run("partial data", func(t *testing.T) {
		resp, err := env.compare.CompareSingleStore(ctx, connect.NewRequest(&api.CompareSingleStoreRequest{
			CompareScope: api.CompareScope{Items: []*api.CompareItem{{ProductID: "1"}, {ProductID: "3"}}},
		}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.PartialData)
		assert.Equal(t, []string{"3"}, resp.Msg.Unpriced)
	})

	t.Run("invalid constraints", func(t *testing.T) {
		zero := 0
		_, err := env.compare.CompareCombo(ctx, connect.NewRequest(&api.CompareComboRequest{
			CompareScope: api.CompareScope{Items: items},
			MaxStores:    &zero,
		}))
		assertCode(t, err, connect.CodeInvalidArgument)

		_, err = env.compare.CompareSingleStore(ctx, connect.NewRequest(&api.CompareSingleStoreRequest{
			CompareScope: api.CompareScope{Items: []*api.CompareItem{{ProductID: "1", Quantity: -2}}},
		}))
		assertCode(t, err, connect.CodeInvalidArgument)

		_, err = env.compare.CompareSingleStore(ctx, connect.NewRequest(&api.CompareSingleStoreRequest{}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestShoppingListService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ana := env.register(t, "ana@example.com")
	bo := env.register(t, "bo@example.com")
	env.seed(t, ana)

	created, err := env.lists.CreateList(ctx, withToken(&api.CreateListRequest{
		Name:  "Weekly",
		Items: []*api.ListItem{{ProductID: "1"}, {ProductID: "2", Quantity: 2}, {ProductID: "1"}},
	}, ana))
	require.NoError(t, err)
	list := created.Msg.List
	require.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Items[0].Quantity, "repeated product merges")
	assert.Equal(t, "Product 1", list.Items[0].ProductName)
	assert.True(t, list.Items[0].Checked)

	resp, err := env.lists.AddItem(ctx, withToken(&api.AddItemRequest{ListID: list.ID, ProductID: "3"}, ana))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.List.Items, 3)

	_, err = env.lists.AddItem(ctx, withToken(&api.AddItemRequest{ListID: list.ID, ProductID: "nope"}, ana))
	assertCode(t, err, connect.CodeNotFound)

	_, err = env.lists.SetQuantity(ctx, withToken(&api.SetQuantityRequest{ListID: list.ID, ProductID: "1", Quantity: 1}, ana))
	require.NoError(t, err)
	_, err = env.lists.SetQuantity(ctx, withToken(&api.SetQuantityRequest{ListID: list.ID, ProductID: "1", Quantity: 0}, ana))
	assertCode(t, err, connect.CodeInvalidArgument)

	// Uncheck product 3 so the list compares only priced items.
	resp, err = env.lists.ToggleItem(ctx, withToken(&api.ToggleItemRequest{ListID: list.ID, ProductID: "3"}, ana))
	require.NoError(t, err)
	assert.False(t, resp.Msg.List.Items[2].Checked)

	cmp, err := env.compare.CompareSingleStore(ctx, withToken(&api.CompareSingleStoreRequest{
		CompareScope: api.CompareScope{ListID: list.ID},
	}, ana))
	require.NoError(t, err)
	assert.False(t, cmp.Msg.PartialData)
	// 1×product1 + 2×product2: A = 5+20 = 25, B = 3+24 = 27.
	assert.Equal(t, "A", cmp.Msg.Stores[0].Store.ID)
	assert.True(t, cmp.Msg.Stores[0].Total.Equal(decimal.NewFromInt(25)))

	_, err = env.lists.GetList(ctx, withToken(&api.GetListRequest{ListID: list.ID}, bo))
	assertCode(t, err, connect.CodePermissionDenied)
	_, err = env.compare.CompareCombo(ctx, withToken(&api.CompareComboRequest{CompareScope: api.CompareScope{ListID: list.ID}}, bo))
	assertCode(t, err, connect.CodePermissionDenied)
	_, err = env.compare.CompareCombo(ctx, withToken(&api.CompareComboRequest{CompareScope: api.CompareScope{ListID: list.ID}}, ""))
	assertCode(t, err, connect.CodeUnauthenticated)
	_, err = env.lists.ListLists(ctx, withToken(&api.ListListsRequest{}, ""))
	assertCode(t, err, connect.CodeUnauthenticated)

	resp, err = env.lists.RemoveItem(ctx, withToken(&api.RemoveItemRequest{ListID: list.ID, ProductID: "2"}, ana))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.List.Items, 2)
	_, err = env.lists.RemoveItem(ctx, withToken(&api.RemoveItemRequest{ListID: list.ID, ProductID: "2"}, ana))
	assertCode(t, err, connect.CodeNotFound)

	all, err := env.lists.ListLists(ctx, withToken(&api.ListListsRequest{}, ana))
	require.NoError(t, err)
	assert.Len(t, all.Msg.Lists, 1)
	none, err := env.lists.ListLists(ctx, withToken(&api.ListListsRequest{}, bo))
	require.NoError(t, err)
	assert.Empty(t, none.Msg.Lists)

	_, err = env.lists.DeleteList(ctx, withToken(&api.DeleteListRequest{ListID: list.ID}, bo))
	assertCode(t, err, connect.CodePermissionDenied)
	_, err = env.lists.DeleteList(ctx, withToken(&api.DeleteListRequest{ListID: list.ID}, ana))
	require.NoError(t, err)
	_, err = env.lists.GetList(ctx, withToken(&api.GetListRequest{ListID: list.ID}, ana))
	assertCode(t, err, connect.CodeNotFound)
}

func TestShoppingListServiceConcurrentAddItem(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ana := env.register(t, "ana@example.com")

	const n = 20
	for i := range n {
		_, err := env.catalog.CreateProduct(ctx, withToken(&api.CreateProductRequest{
			ID: fmt.Sprintf("p%02d", i), Name: fmt.Sprintf("Product %d", i),
		}, ana))
		require.NoError(t, err)
	}
	created, err := env.lists.CreateList(ctx, withToken(&api.CreateListRequest{Name: "Shared"}, ana))
	require.NoError(t, err)
	listID := created.Msg.List.ID

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.lists.AddItem(ctx, withToken(&api.AddItemRequest{
				ListID: listID, ProductID: fmt.Sprintf("p%02d", i),
			}, ana))
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "AddItem p%02d", i)
	}

	got, err := env.lists.GetList(ctx, withToken(&api.GetListRequest{ListID: listID}, ana))
	require.NoError(t, err)
	assert.Len(t, got.Msg.List.Items, n, "every successful AddItem is kept")
}

func TestCatalogServiceConcurrentRecordPriceSurvivesReload(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ana := env.register(t, "ana@example.com")
	env.seed(t, ana)

	// Newer than the seeded prices, so every write competes for current.
	observedAt := time.Now().Add(time.Minute).Unix()
	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	current := make([]bool, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{
				ProductID:  "1",
				StoreID:    "A",
				Price:      decimal.NewFromInt(int64(10 + i)),
				ObservedAt: observedAt,
			}, ana))
			errs[i] = err
			if err == nil {
				current[i] = resp.Msg.Current
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err)
		assert.True(t, current[i], "an equal-timestamp write becomes current when it lands")
	}

	live, ok := env.cat.Snapshot().Price("1", "A")
	require.True(t, ok)
	reloaded, err := catalog.Load(ctx, env.store)
	require.NoError(t, err)
	got, ok := reloaded.Snapshot().Price("1", "A")
	require.True(t, ok)
	assert.Equal(t, live.ID, got.ID, "reload picks the same current observation")
	assert.True(t, live.Price.Equal(got.Price), "live %s, reloaded %s", live.Price, got.Price)
}

func TestCatalogService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	token := env.register(t, "ana@example.com")
	env.seed(t, token)

	t.Run("writes need a caller", func(t *testing.T) {
		_, err := env.catalog.CreateProduct(ctx, connect.NewRequest(&api.CreateProductRequest{Name: "Milk"}))
		assertCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("duplicates and bad input", func(t *testing.T) {
		_, err := env.catalog.CreateProduct(ctx, withToken(&api.CreateProductRequest{ID: "1", Name: "Again"}, token))
		assertCode(t, err, connect.CodeAlreadyExists)
		_, err = env.catalog.CreateStore(ctx, withToken(&api.CreateStoreRequest{Name: "Nowhere"}, token))
		assertCode(t, err, connect.CodeInvalidArgument)
		_, err = env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{ProductID: "1", StoreID: "A", Price: decimal.Zero}, token))
		assertCode(t, err, connect.CodeInvalidArgument)
		_, err = env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{ProductID: "1", StoreID: "Z", Price: decimal.NewFromInt(1)}, token))
		assertCode(t, err, connect.CodeNotFound)
	})

	t.Run("list stores near a location", func(t *testing.T) {
		resp, err := env.catalog.ListStores(ctx, connect.NewRequest(&api.ListStoresRequest{
			Near:          &api.Location{Lat: 0.025},
			MaxDistanceKm: 1,
		}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Stores, 1)
		assert.Equal(t, "B", resp.Msg.Stores[0].ID)
		require.NotNil(t, resp.Msg.Stores[0].DistanceKm)
	})

	t.Run("older observation does not replace the price", func(t *testing.T) {
		resp, err := env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{
			ProductID: "1", StoreID: "B", Price: decimal.RequireFromString("1.00"), ObservedAt: 1_600_000_000,
		}, token))
		require.NoError(t, err)
		assert.False(t, resp.Msg.Current)

		hist, err := env.catalog.GetPriceHistory(ctx, connect.NewRequest(&api.GetPriceHistoryRequest{ProductID: "1", StoreID: "B"}))
		require.NoError(t, err)
		require.Len(t, hist.Msg.Observations, 2)
		assert.True(t, hist.Msg.Observations[0].Price.Equal(decimal.NewFromInt(3)), "newest first")
		require.NotNil(t, hist.Msg.CitywideAverage)
		assert.True(t, hist.Msg.CitywideAverage.Equal(decimal.NewFromInt(4)))
	})

	t.Run("ingest html receipt", func(t *testing.T) {
		html := `<div data-store-id="A"><time datetime="2030-01-01T10:00:00Z"></time>
			<p class="line-item"><span class="name">product 1</span><span class="qty">2</span><span class="price">R$ 7,00</span></p>
			<p class="line-item"><span class="name">Mystery Item</span><span class="price">1,00</span></p></div>`
		_, err := env.catalog.IngestReceipt(ctx, withToken(&api.IngestReceiptRequest{HTML: html}, token))
		assertCode(t, err, connect.CodeInvalidArgument) // stamped in the future

		resp, err := env.catalog.IngestReceipt(ctx, withToken(&api.IngestReceiptRequest{HTML: html, ObservedAt: 1_750_000_000}, token))
		require.NoError(t, err)
		assert.Equal(t, "A", resp.Msg.StoreID)
		require.Len(t, resp.Msg.Observations, 1)
		assert.Equal(t, "scan", resp.Msg.Observations[0].Source)
		assert.True(t, resp.Msg.Observations[0].Price.Equal(decimal.RequireFromString("3.50")))
		assert.Equal(t, []string{"Mystery Item"}, resp.Msg.Unmatched)
	})

	t.Run("ingest structured lines", func(t *testing.T) {
		resp, err := env.catalog.IngestReceipt(ctx, withToken(&api.IngestReceiptRequest{
			StoreID: "B",
			Lines:   []*api.ReceiptLine{{ProductID: "2", Quantity: 3, Price: decimal.RequireFromString("30.00")}},
		}, token))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Observations, 1)
		assert.True(t, resp.Msg.Observations[0].Price.Equal(decimal.NewFromInt(10)))

		_, err = env.catalog.IngestReceipt(ctx, withToken(&api.IngestReceiptRequest{StoreID: "B"}, token))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("products filter", func(t *testing.T) {
		resp, err := env.catalog.ListProducts(ctx, connect.NewRequest(&api.ListProductsRequest{Query: "product 2"}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Products, 1)
		assert.Equal(t, "2", resp.Msg.Products[0].ID)
	})
}

func TestCatalogServiceRateLimit(t *testing.T) {
	env := newTestEnv(t, middleware.NewKeyedLimiter(0.001, 5))
	ctx := context.Background()
	token := env.register(t, "ana@example.com")

	// seed records four prices; the fifth fits the burst, the sixth does not.
	env.seed(t, token)
	_, err := env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{ProductID: "3", StoreID: "A", Price: decimal.NewFromInt(1)}, token))
	require.NoError(t, err)
	_, err = env.catalog.RecordPrice(ctx, withToken(&api.RecordPriceRequest{ProductID: "3", StoreID: "B", Price: decimal.NewFromInt(1)}, token))
	assertCode(t, err, connect.CodeResourceExhausted)
}
