package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/config"
	"github.com/kailas-cloud/facetdex/internal/db/opensearch"
	dbRedis "github.com/kailas-cloud/facetdex/internal/db/redis"
	"github.com/kailas-cloud/facetdex/internal/domain/descriptor"
	domfacet "github.com/kailas-cloud/facetdex/internal/domain/facet"
	logpkg "github.com/kailas-cloud/facetdex/internal/logger"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	"github.com/kailas-cloud/facetdex/internal/repository/facetcache"
	chiTransport "github.com/kailas-cloud/facetdex/internal/transport/chi"
	batchuc "github.com/kailas-cloud/facetdex/internal/usecase/batch"
	facetuc "github.com/kailas-cloud/facetdex/internal/usecase/facet"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	paginationuc "github.com/kailas-cloud/facetdex/internal/usecase/pagination"
	queryuc "github.com/kailas-cloud/facetdex/internal/usecase/query"
	"github.com/kailas-cloud/facetdex/internal/version"
)

// memoryCleanupInterval is how often the in-process facet cache drops expired entries.
const memoryCleanupInterval = time.Minute

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting facetdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("backend_addrs", cfg.Backend.Addresses),
		zap.String("facet_cache", cfg.Facets.CacheDriver),
	)

	// Register query metrics explicitly (no init())
	metrics.RegisterQueryMetrics()

	backend, err := opensearch.New(opensearch.Config{
		Addresses:          cfg.Backend.Addresses,
		Username:           cfg.Backend.Username,
		Password:           cfg.Backend.Password,
		Timeout:            time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		MaxRPS:             cfg.Backend.MaxRPS,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
	}, opensearch.Instruments{
		Requests: metrics.BackendRequestsTotal,
		Duration: metrics.BackendRequestDuration,
	})
	if err != nil {
		logger.Fatal("Failed to create search backend client", zap.Error(err))
	}

	ctx := context.Background()
	if err := backend.WaitForReady(ctx, time.Duration(cfg.Backend.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search backend not ready", zap.Error(err))
	}
	logger.Info("Connected to search backend")

	// Descriptors: a broken descriptor is logged and skipped, the rest still serve.
	descs, loadErrs := descriptor.Load(cfg.Query.Descriptors...)
	for _, e := range loadErrs {
		logger.Error("Failed to load query descriptor", zap.Error(e))
		metrics.QueryRegistrationErrors.Inc()
	}
	registry := queryuc.RegisterAll(descs, queryuc.Limits{
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
	}, metrics.QueryRegistrationErrors, logger)

	sets, err := domfacet.Load(cfg.Facets.File)
	if err != nil {
		logger.Fatal("Failed to load facet sets", zap.Error(err))
	}
	logger.Info("Facet sets loaded", zap.Int("sets", len(sets)))

	// Facet cache tier
	var (
		bundleCache facetuc.Cache
		cachePinger healthuc.Pinger
	)
	switch cfg.Facets.CacheDriver {
	case "memory":
		mem := facetcache.NewMemory(cfg.Facets.CacheMaxEntries, memoryCleanupInterval)
		defer mem.Close()
		bundleCache = facetcache.New(mem, cacheTTL(cfg), metrics.FacetCacheTotal, logger)
		cachePinger = mem
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
		bundleCache = facetcache.New(store, cacheTTL(cfg), metrics.FacetCacheTotal, logger)
		cachePinger = store
	}

	// Use case services
	pager := paginationuc.New(backend, metrics.ScrollSessionsTotal, logger).
		WithWindow(cfg.Backend.ResultWindow).
		WithKeepAlive(time.Duration(cfg.Backend.ScrollKeepAliveSec) * time.Second)
	executor := batchuc.New(backend, pager).
		WithParallelism(cfg.Query.Parallelism).
		WithMaxBatchSize(cfg.Query.MaxBatchSize)
	querySvc := queryuc.New(registry, executor, logger)
	facetSvc := facetuc.New(sets, executor, backend, bundleCache, metrics.FacetRecountTotal, logger)
	healthSvc := healthuc.New(backend, cachePinger)

	server := chiTransport.NewServer(querySvc, facetSvc, healthSvc)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware(knownTargets(querySvc.Names(), facetSvc.Sets())))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func cacheTTL(cfg config.Config) time.Duration {
	return time.Duration(cfg.Facets.CacheTTLSec) * time.Second
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// knownTargets bounds the metrics target label to registered queries and facet sets.
func knownTargets(groups ...[]string) metrics.KnownTargets {
	known := make(map[string]struct{})
	for _, names := range groups {
		for _, n := range names {
			known[n] = struct{}{}
		}
	}
	return func(name string) bool {
		_, ok := known[name]
		return ok
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
