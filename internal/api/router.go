package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogquery/internal/api/handlers"
	mw "github.com/Harshitk-cp/cogquery/internal/api/middleware"
	"github.com/Harshitk-cp/cogquery/internal/buildconfig"
	"github.com/Harshitk-cp/cogquery/internal/config"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router and the services behind it for lifecycle management.
type App struct {
	Router    *chi.Mux
	Inference *service.InferenceService
	Atoms     *service.AtomService
	Limiter   *mw.RateLimiter

	registry     *prometheus.Registry
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires services and routes over space. db is the journal's pool and
// may be nil when the store runs in memory only.
func NewApp(space *store.AtomSpace, db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	inference := service.NewInferenceService(space, logger,
		service.WithWorkers(config.ApplyWorkers()),
		service.WithSearchLimit(config.SearchLimit()),
		service.WithMetrics(service.NewMetrics(reg, space.Size)),
	)
	if err := inference.RegisterBuiltins(); err != nil {
		return nil, err
	}
	atoms := service.NewAtomService(space, logger)

	atomHandler := handlers.NewAtomHandler(atoms, logger)
	queryHandler := handlers.NewQueryHandler(inference, atoms)
	ruleHandler := handlers.NewRuleHandler(inference, atoms, logger)

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		Inference: inference,
		Atoms:     atoms,
		Limiter:   mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst()),
		registry:  reg,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount, reg)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(app.Limiter))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db, space))
	r.Get("/metrics", app.metricsHandler())
	r.Handle("/metrics/prometheus", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKeys()))

		r.Get("/types", atomHandler.Types)
		r.Get("/nodes", atomHandler.Nodes)

		r.Route("/atoms", func(r chi.Router) {
			r.Post("/", atomHandler.Create)
			r.Get("/", atomHandler.List)
			r.Get("/{handle}", atomHandler.GetByHandle)
		})

		r.Post("/query", queryHandler.Query)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", ruleHandler.List)
			r.Route("/{name}", func(r chi.Router) {
				r.Post("/compute", ruleHandler.Compute)
				r.Post("/apply", ruleHandler.Apply)
				r.Post("/inputs", ruleHandler.Inputs)
				r.Post("/output", ruleHandler.Output)
			})
		})
	})

	return app, nil
}

// Start runs background maintenance until ctx is done.
func (app *App) Start(ctx context.Context) {
	go app.Limiter.Run(ctx, time.Minute)
}

func healthHandler(db *pgxpool.Pool, space *store.AtomSpace) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status":  "ok",
			"atoms":   space.Size(),
			"journal": "disabled",
			"build":   buildconfig.VersionInfo(),
		}
		status := http.StatusOK
		if db != nil {
			resp["journal"] = "postgres"
			if err := db.Ping(r.Context()); err != nil {
				resp["status"] = "error"
				resp["error"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"atoms":          app.Atoms.Size(),
			"rules":          len(app.Inference.Rules()),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.AtomStore       = (*store.AtomSpace)(nil)
	_ service.AtomIndex      = (*store.AtomSpace)(nil)
	_ service.KnowledgeStore = (*store.AtomSpace)(nil)
	_ domain.Journal         = (*store.PostgresJournal)(nil)
)
