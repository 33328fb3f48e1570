package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/geo"
	"github.com/notapoint/backend/internal/middleware"
	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/receipt"
	"github.com/notapoint/backend/internal/storage"
	"github.com/notapoint/backend/pkg/api"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	// maxClockSkew is how far in the future an observation may be stamped.
	maxClockSkew = 10 * time.Minute
)

var errRateLimited = errors.New("too many price submissions, slow down")

// CatalogService implements the CatalogService RPC interface. Reads are
// public; writes need a signed-in caller. Every write goes to storage first
// and is then published to the live catalog.
type CatalogService struct {
	store   storage.CatalogStore
	catalog *catalog.Catalog
	limiter *middleware.KeyedLimiter
	metrics *middleware.Metrics
	logger  *slog.Logger
	now     func() time.Time

	// ingestMu orders observation writes identically in storage and in the
	// catalog, so a reload picks the same current prices.
	ingestMu sync.Mutex
}

// NewCatalogService creates the catalog service. limiter and metrics may be
// nil.
func NewCatalogService(store storage.CatalogStore, cat *catalog.Catalog, limiter *middleware.KeyedLimiter, metrics *middleware.Metrics, logger *slog.Logger) *CatalogService {
	metrics.SetObservations(cat.Snapshot().ObservationCount())
	return &CatalogService{
		store:   store,
		catalog: cat,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateProduct registers a product.
func (s *CatalogService) CreateProduct(ctx context.Context, req *connect.Request[api.CreateProductRequest]) (*connect.Response[api.CreateProductResponse], error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("product name is required")
	}
	product := &models.Product{
		ID:       strings.TrimSpace(req.Msg.ID),
		Name:     name,
		Category: strings.TrimSpace(req.Msg.Category),
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := s.catalog.Snapshot().Product(product.ID); exists {
		return nil, connect.NewError(connect.CodeAlreadyExists, catalog.ErrDuplicate)
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateProduct", err)
	}
	if err := s.catalog.AddProduct(*product); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateProduct", err)
	}

	s.logger.InfoContext(ctx, "Product created", "product_id", product.ID, "category", product.Category)
	return connect.NewResponse(&api.CreateProductResponse{Product: productToAPI(*product)}), nil
}

// ListProducts returns products ordered by name, optionally filtered.
func (s *CatalogService) ListProducts(ctx context.Context, req *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error) {
	products := sortedProducts(s.catalog.Snapshot())
	query := strings.ToLower(strings.TrimSpace(req.Msg.Query))

	out := make([]*api.Product, 0, len(products))
	for _, p := range products {
		if req.Msg.Category != "" && !strings.EqualFold(p.Category, req.Msg.Category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, productToAPI(p))
	}
	return connect.NewResponse(&api.ListProductsResponse{Products: out}), nil
}

func sortedProducts(snap *catalog.Snapshot) []models.Product {
	products := snap.Products()
	slices.SortFunc(products, func(a, b models.Product) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products
}

// CreateStore registers a store.
func (s *CatalogService) CreateStore(ctx context.Context, req *connect.Request[api.CreateStoreRequest]) (*connect.Response[api.CreateStoreResponse], error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("store name is required")
	}
	loc := locationFromAPI(req.Msg.Location)
	if loc == nil || !loc.Valid() {
		return nil, invalidArgument("a valid store location is required")
	}
	st := &models.Store{
		ID:       strings.TrimSpace(req.Msg.ID),
		Name:     name,
		Chain:    strings.TrimSpace(req.Msg.Chain),
		Location: *loc,
		Address:  strings.TrimSpace(req.Msg.Address),
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if _, exists := s.catalog.Snapshot().Store(st.ID); exists {
		return nil, connect.NewError(connect.CodeAlreadyExists, catalog.ErrDuplicate)
	}

	if err := s.store.CreateStore(ctx, st); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateStore", err)
	}
	if err := s.catalog.AddStore(*st); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateStore", err)
	}

	s.logger.InfoContext(ctx, "Store created", "store_id", st.ID, "chain", st.Chain)
	return connect.NewResponse(&api.CreateStoreResponse{Store: storeToAPI(*st)}), nil
}

// ListStores returns stores by ID, or nearest first when a location is given.
func (s *CatalogService) ListStores(ctx context.Context, req *connect.Request[api.ListStoresRequest]) (*connect.Response[api.ListStoresResponse], error) {
	near := locationFromAPI(req.Msg.Near)
	if near != nil && !near.Valid() {
		return nil, invalidArgument("near: latitude or longitude out of range")
	}

	stores := s.catalog.Snapshot().Stores()
	out := make([]*api.Store, 0, len(stores))
	for _, st := range stores {
		as := storeToAPI(st)
		if near != nil {
			d := geo.DistanceKm(*near, st.Location)
			if req.Msg.MaxDistanceKm > 0 && d > req.Msg.MaxDistanceKm {
				continue
			}
			as.DistanceKm = &d
		}
		out = append(out, as)
	}
	if near != nil {
		slices.SortStableFunc(out, func(a, b *api.Store) int {
			return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
		})
	}
	return connect.NewResponse(&api.ListStoresResponse{Stores: out}), nil
}

// RecordPrice stores a manual price observation.
func (s *CatalogService) RecordPrice(ctx context.Context, req *connect.Request[api.RecordPriceRequest]) (*connect.Response[api.RecordPriceResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if !s.limiter.Allow(userID, 1) {
		return nil, connect.NewError(connect.CodeResourceExhausted, errRateLimited)
	}

	obs := models.PriceObservation{
		ProductID:  req.Msg.ProductID,
		StoreID:    req.Msg.StoreID,
		Price:      req.Msg.Price,
		ObservedAt: req.Msg.ObservedAt,
		Source:     models.SourceManual,
		RecordedBy: userID,
	}
	if obs.ObservedAt == 0 {
		obs.ObservedAt = s.now().Unix()
	}
	if err := s.checkTime(obs.ObservedAt); err != nil {
		return nil, err
	}

	stored, snap, err := s.ingest(ctx, []models.PriceObservation{obs})
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordPrice", err)
	}
	rec := stored[0]
	current, _ := snap.Price(rec.ProductID, rec.StoreID)

	s.logger.InfoContext(ctx, "Price recorded",
		"product_id", rec.ProductID,
		"store_id", rec.StoreID,
		"price", rec.Price.String(),
	)
	return connect.NewResponse(&api.RecordPriceResponse{
		Observation: observationToAPI(rec),
		Current:     current.ID == rec.ID,
	}), nil
}

// IngestReceipt turns a structured or HTML receipt into scan observations.
// Lines that match no product are reported, not rejected.
func (s *CatalogService) IngestReceipt(ctx context.Context, req *connect.Request[api.IngestReceiptRequest]) (*connect.Response[api.IngestReceiptResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if !s.limiter.Allow(userID, 1) {
		return nil, connect.NewError(connect.CodeResourceExhausted, errRateLimited)
	}

	hasHTML, hasLines := strings.TrimSpace(req.Msg.HTML) != "", len(req.Msg.Lines) > 0
	if hasHTML == hasLines {
		return nil, invalidArgument("exactly one of html or lines is required")
	}

	var rec *receipt.Receipt
	if hasHTML {
		parsed, err := receipt.ParseHTML(strings.NewReader(req.Msg.HTML))
		if err != nil {
			return nil, invalidArgument("unreadable receipt: %v", err)
		}
		rec = parsed
	} else {
		rec = &receipt.Receipt{Lines: make([]receipt.Line, len(req.Msg.Lines))}
		for i, l := range req.Msg.Lines {
			if l.Quantity < 0 {
				return nil, invalidArgument("line %d: quantity must not be negative", i+1)
			}
			rec.Lines[i] = receipt.Line{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: l.Price}
		}
	}

	storeID := cmp.Or(req.Msg.StoreID, rec.StoreID)
	if storeID == "" {
		return nil, invalidArgument("store_id is required")
	}
	snap := s.catalog.Snapshot()
	if _, ok := snap.Store(storeID); !ok {
		return nil, connect.NewError(connect.CodeNotFound, catalog.ErrUnknownStore)
	}
	if req.Msg.ObservedAt != 0 {
		rec.ObservedAt = req.Msg.ObservedAt
	}
	if rec.ObservedAt != 0 {
		if err := s.checkTime(rec.ObservedAt); err != nil {
			return nil, err
		}
	}

	res := receipt.NewMatcher(sortedProducts(snap)).Observations(rec, storeID, userID, s.now())
	stored, _, err := s.ingest(ctx, res.Observations)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "IngestReceipt", err)
	}

	out := &api.IngestReceiptResponse{
		StoreID:      storeID,
		Observations: make([]*api.PriceObservation, len(stored)),
		Unmatched:    res.Unmatched,
	}
	for i, o := range stored {
		out.Observations[i] = observationToAPI(o)
	}

	s.logger.InfoContext(ctx, "Receipt ingested",
		"store_id", storeID,
		"matched", len(stored),
		"unmatched", len(res.Unmatched),
	)
	return connect.NewResponse(out), nil
}

// GetPriceHistory returns a product's observations, newest first.
func (s *CatalogService) GetPriceHistory(ctx context.Context, req *connect.Request[api.GetPriceHistoryRequest]) (*connect.Response[api.GetPriceHistoryResponse], error) {
	snap := s.catalog.Snapshot()
	if _, ok := snap.Product(req.Msg.ProductID); !ok {
		return nil, connect.NewError(connect.CodeNotFound, catalog.ErrUnknownProduct)
	}
	if req.Msg.StoreID != "" {
		if _, ok := snap.Store(req.Msg.StoreID); !ok {
			return nil, connect.NewError(connect.CodeNotFound, catalog.ErrUnknownStore)
		}
	}

	limit := req.Msg.Limit
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	history, err := s.store.ListPriceHistory(ctx, req.Msg.ProductID, req.Msg.StoreID, limit)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "GetPriceHistory", err)
	}

	out := &api.GetPriceHistoryResponse{Observations: make([]*api.PriceObservation, len(history))}
	for i, o := range history {
		out.Observations[i] = observationToAPI(*o)
	}
	if avg, ok := snap.CitywideAverage(req.Msg.ProductID); ok {
		out.CitywideAverage = &avg
	}
	return connect.NewResponse(out), nil
}

func (s *CatalogService) checkTime(observedAt int64) error {
	if observedAt < 0 {
		return invalidArgument("observed_at must be a Unix timestamp")
	}
	if time.Unix(observedAt, 0).After(s.now().Add(maxClockSkew)) {
		return invalidArgument("observed_at is in the future")
	}
	return nil
}

// ingest validates, persists and publishes observations, returning the
// snapshot that first contains them. Nothing is stored unless every
// observation is valid.
func (s *CatalogService) ingest(ctx context.Context, observations []models.PriceObservation) ([]models.PriceObservation, *catalog.Snapshot, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if len(observations) == 0 {
		return nil, s.catalog.Snapshot(), nil
	}
	for _, obs := range observations {
		if err := s.catalog.Validate(obs); err != nil {
			return nil, nil, err
		}
	}

	ptrs := make([]*models.PriceObservation, len(observations))
	for i := range observations {
		ptrs[i] = &observations[i]
	}
	if err := s.store.AppendObservations(ctx, ptrs); err != nil {
		return nil, nil, err
	}
	if err := s.catalog.Ingest(observations...); err != nil {
		return nil, nil, err
	}

	snap := s.catalog.Snapshot()
	s.metrics.SetObservations(snap.ObservationCount())
	return observations, snap, nil
}
