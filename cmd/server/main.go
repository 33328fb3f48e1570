package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/notapoint/backend/internal/auth"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/compare"
	"github.com/notapoint/backend/internal/config"
	"github.com/notapoint/backend/internal/middleware"
	"github.com/notapoint/backend/internal/route"
	"github.com/notapoint/backend/internal/service"
	"github.com/notapoint/backend/internal/storage/sqlite"
	"github.com/notapoint/backend/pkg/logging"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Logging.Level)
	logger := logging.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	cat, err := catalog.Load(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	snap := cat.Snapshot()
	logger.Info("Catalog loaded",
		"database", cfg.Database.Path,
		"stores", len(snap.Stores()),
		"products", len(snap.Products()),
		"observations", snap.ObservationCount(),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(registry)

	var provider route.DistanceProvider
	if cfg.Route.ProviderURL != "" {
		provider = route.NewCachedProvider(
			route.NewOSRMClient(cfg.Route.ProviderURL, cfg.Route.ProviderRPS),
			cfg.Route.CacheTTL,
			cfg.Route.CacheSize,
		)
		logger.Info("Route provider enabled", "url", cfg.Route.ProviderURL, "cache_ttl", cfg.Route.CacheTTL)
	}
	estimator := route.NewEstimator(route.Config{
		DriveSpeedKmh: cfg.Route.DriveSpeedKmh,
		WalkSpeedKmh:  cfg.Route.WalkSpeedKmh,
		Timeout:       cfg.Route.Timeout,
	}, provider)

	comparer := compare.NewComparer(cat, estimator, compare.Config{
		DefaultMaxStores: cfg.Compare.DefaultMaxStores,
		MaxStoresLimit:   cfg.Compare.MaxStoresLimit,
		TravelCostPerKm:  cfg.Compare.TravelCost,
	}, metrics)

	mux := http.NewServeMux()
	service.Mount(mux, service.Deps{
		Store:         store,
		Catalog:       cat,
		Comparer:      comparer,
		JWT:           auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:       middleware.NewKeyedLimiter(cfg.RateLimit.IngestPerSecond, cfg.RateLimit.IngestBurst),
		Metrics:       metrics,
		MaxDistanceKm: cfg.Compare.MaxDistanceKm,
		Logger:        logger,
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := loggingMiddleware(logger, corsMiddleware(cfg.Server.AllowedOrigins, mux))

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		// h2c serves HTTP/2 without TLS for Connect clients.
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Connect server starting", "address", server.Addr, "environment", cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "grace", cfg.Server.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loggingMiddleware logs plain HTTP requests at debug level. RPCs are
// logged by the Connect interceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser clients. "*" allows any
// origin.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(allowed, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
				"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms",
			}, ", "))
			w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{
				"Connect-Protocol-Version", service.ErrorKindHeader,
			}, ", "))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
