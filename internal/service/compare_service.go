package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/internal/calculator"
	"github.com/notapoint/backend/internal/compare"
	"github.com/notapoint/backend/internal/storage"
	"github.com/notapoint/backend/pkg/api"
)

// CompareService implements the CompareService RPC interface. Anonymous
// callers may compare ad-hoc items; comparing a stored list needs its owner.
type CompareService struct {
	comparer      *compare.Comparer
	lists         storage.ListStore
	maxDistanceKm float64
	logger        *slog.Logger
}

// NewCompareService creates the comparison service. maxDistanceKm is the
// default search radius; zero means unlimited.
func NewCompareService(comparer *compare.Comparer, lists storage.ListStore, maxDistanceKm float64, logger *slog.Logger) *CompareService {
	return &CompareService{comparer: comparer, lists: lists, maxDistanceKm: maxDistanceKm, logger: logger}
}

func (s *CompareService) request(ctx context.Context, scope api.CompareScope) (compare.Request, error) {
	req := compare.Request{
		Origin:        locationFromAPI(scope.Location),
		StoreIDs:      scope.StoreIDs,
		MaxDistanceKm: scope.MaxDistanceKm,
	}
	if req.MaxDistanceKm == 0 && req.Origin != nil {
		req.MaxDistanceKm = s.maxDistanceKm
	}

	switch {
	case scope.ListID != "" && len(scope.Items) > 0:
		return req, invalidArgument("list_id and items are mutually exclusive")
	case scope.ListID != "":
		list, err := ownedList(ctx, s.lists, scope.ListID)
		if err != nil {
			return req, err
		}
		req.Items = compare.ItemsFromList(list)
	case len(scope.Items) > 0:
		req.Items = make([]calculator.LineItem, len(scope.Items))
		for i, it := range scope.Items {
			req.Items[i] = calculator.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
		}
	default:
		return req, invalidArgument("either list_id or items is required")
	}
	return req, nil
}

// CompareSingleStore ranks stores by what the whole list costs there.
func (s *CompareService) CompareSingleStore(ctx context.Context, req *connect.Request[api.CompareSingleStoreRequest]) (*connect.Response[api.CompareSingleStoreResponse], error) {
	creq, err := s.request(ctx, req.Msg.CompareScope)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "CompareSingleStore", err)
	}

	res, err := s.comparer.CompareSingleStore(ctx, creq)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "CompareSingleStore", err)
	}

	out := &api.CompareSingleStoreResponse{
		Stores:         make([]*api.StoreTotal, len(res.Stores)),
		BestPrices:     make([]*api.BestPrice, len(res.Best)),
		Unpriced:       res.Unpriced,
		PartialData:    res.PartialData,
		CatalogVersion: res.CatalogVersion,
	}
	for i, st := range res.Stores {
		out.Stores[i] = storeTotalToAPI(st)
	}
	for i, b := range res.Best {
		out.BestPrices[i] = &api.BestPrice{
			ProductID:      b.ProductID,
			Quantity:       b.Quantity,
			StoreID:        b.StoreID,
			UnitPrice:      b.UnitPrice,
			StoresCarrying: b.StoresCarrying,
		}
	}
	return connect.NewResponse(out), nil
}

// CompareCombo splits the list across at most max_stores stores.
func (s *CompareService) CompareCombo(ctx context.Context, req *connect.Request[api.CompareComboRequest]) (*connect.Response[api.CompareComboResponse], error) {
	creq, err := s.request(ctx, req.Msg.CompareScope)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "CompareCombo", err)
	}
	maxStores := s.comparer.DefaultMaxStores()
	if req.Msg.MaxStores != nil {
		maxStores = *req.Msg.MaxStores
	}

	res, err := s.comparer.CompareCombo(ctx, creq, maxStores)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "CompareCombo", err)
	}

	combo := res.Combo
	out := &api.CompareComboResponse{
		Assignments:     make([]*api.Assignment, len(combo.Assignments)),
		Stores:          make([]*api.StoreSubtotal, len(combo.Stores)),
		Total:           combo.Total,
		TravelKm:        combo.TravelKm,
		TravelCost:      combo.TravelCost,
		BestSingleStore: storeTotalToAPI(combo.BestSingle),
		Savings:         combo.Savings,
		Restricted:      combo.Restricted,
		PartialData:     combo.PartialData,
		Unpriced:        res.Unpriced,
		Route:           routeToAPI(res.Route),
		CatalogVersion:  res.CatalogVersion,
	}
	for i, a := range combo.Assignments {
		out.Assignments[i] = &api.Assignment{
			ProductID: a.ProductID,
			Quantity:  a.Quantity,
			StoreID:   a.StoreID,
			UnitPrice: a.UnitPrice,
			LineTotal: a.LineTotal,
			Estimated: a.Estimated,
		}
	}
	for i, st := range combo.Stores {
		out.Stores[i] = &api.StoreSubtotal{
			Store:      storeToAPI(st.Store),
			DistanceKm: st.DistanceKm,
			Subtotal:   st.Subtotal,
			ItemCount:  st.ItemCount,
		}
	}

	s.logger.DebugContext(ctx, "Combo computed",
		"stores", len(combo.Stores),
		"total", combo.Total.String(),
		"savings", combo.Savings.String(),
		"route_method", res.Route.Method,
	)
	return connect.NewResponse(out), nil
}
