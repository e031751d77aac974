// Accepts sale batches recorded by offline point-of-sale clients and
// reconciles them against the server of record.
//
// POST /api/sync/upload              # Upload a batch of sales (auth)
// GET  /api/sync/pending             # List unsynchronized sales (auth)
// POST /api/sync/retry               # Requeue failed sales (auth)
// POST /api/sync/sales/{id}/resolve  # Resolve a conflict (auth)
// GET  /api/sync/sales/{id}/status   # Ledger snapshot (auth)
// GET  /health                       # Liveness (public)

package api

import (
	healthAPI "salesync/internal/app/server/api/http/health"
	"salesync/internal/app/server/api/http/middleware"
	"salesync/internal/app/server/api/http/middleware/auth"
	"salesync/internal/app/server/api/http/middleware/logger"
	"salesync/internal/app/server/api/http/middleware/ratelimit"
	syncAPI "salesync/internal/app/server/api/http/sync"
	"salesync/internal/app/server/config"
	"salesync/internal/domain/sale"
	"salesync/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
}

// New builds a *chi.Mux with every operation registered through
// huma.Register. The returned limiter owns a background goroutine and
// must be stopped on shutdown.
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) (*chi.Mux, *ratelimit.SlidingWindow) {
	mux := chi.NewMux()

	humaCfg := huma.DefaultConfig("Salesync API", "1.0.0")
	humaCfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaCfg)

	h, limiter := handlers(storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux, limiter
}

func handlers(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) (*Handlers, *ratelimit.SlidingWindow) {
	authMW := auth.New(auth.StaticResolver(cfg.Auth.Tokens), log)
	loggerMW := logger.New(log)
	limiter := ratelimit.NewSlidingWindow(cfg.Sync.RateLimit, cfg.Sync.RateWindow)
	gateMW := ratelimit.NewGate(limiter, log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	saleRepo := postgres.NewSaleRepository(storage, log)
	lookups := postgres.NewLookupRepository(storage, log)
	pipeline := sale.NewPipeline(lookups, lookups.Products(), saleRepo, log)
	saleService := sale.NewService(saleRepo, pipeline, log, sale.Config{
		BatchTimeout:   cfg.Sync.BatchTimeout,
		PendingDefault: cfg.Sync.PendingDefault,
		PendingMax:     cfg.Sync.PendingMax,
	})
	middlewares.Add(authMW.Middleware())
	middlewares.Add(gateMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(saleService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}, limiter
}
