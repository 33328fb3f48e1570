package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/internal/auth"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/compare"
	"github.com/notapoint/backend/internal/middleware"
	"github.com/notapoint/backend/internal/storage"
	"github.com/notapoint/backend/pkg/api/apiconnect"
)

// Deps are the collaborators the RPC services share.
type Deps struct {
	Store         storage.Store
	Catalog       *catalog.Catalog
	Comparer      *compare.Comparer
	JWT           *auth.JWTManager
	Limiter       *middleware.KeyedLimiter
	Metrics       *middleware.Metrics
	MaxDistanceKm float64
	Logger        *slog.Logger
}

// Mount registers every service on mux. Metrics wrap the whole call so
// authentication failures are counted too.
func Mount(mux *http.ServeMux, d Deps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	chain := func(authn connect.UnaryInterceptorFunc) connect.HandlerOption {
		interceptors := []connect.Interceptor{}
		if d.Metrics != nil {
			interceptors = append(interceptors, d.Metrics.Interceptor())
		}
		interceptors = append(interceptors, authn, middleware.LoggingInterceptor(d.Logger))
		return connect.WithInterceptors(interceptors...)
	}
	optional := chain(middleware.OptionalAuth(d.JWT))
	required := chain(middleware.RequireAuth(d.JWT))

	authn := auth.NewPasswordAuthenticator(d.Store)
	mux.Handle(apiconnect.NewAuthServiceHandler(
		NewAuthService(authn, d.JWT, d.Logger), optional))

	mux.Handle(apiconnect.NewCatalogServiceHandler(
		NewCatalogService(d.Store, d.Catalog, d.Limiter, d.Metrics, d.Logger), optional))

	mux.Handle(apiconnect.NewShoppingListServiceHandler(
		NewShoppingListService(d.Store, d.Catalog, d.Logger), required))

	mux.Handle(apiconnect.NewCompareServiceHandler(
		NewCompareService(d.Comparer, d.Store, d.MaxDistanceKm, d.Logger), optional))
}
