package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/cogquery/internal/api"
	"github.com/Harshitk-cp/cogquery/internal/buildconfig"
	"github.com/Harshitk-cp/cogquery/internal/config"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	types := domain.NewTypeRegistry()
	if path := config.TypesFile(); path != "" {
		infos, err := config.LoadTypes(path)
		if err != nil {
			logger.Fatal("failed to load types", zap.String("path", path), zap.Error(err))
		}
		if err := config.RegisterTypes(types, infos); err != nil {
			logger.Fatal("failed to register types", zap.Error(err))
		}
		logger.Info("registered atom types", zap.Int("count", len(infos)))
	}

	opts := []store.Option{store.WithStripes(config.StoreStripes())}

	var pool *pgxpool.Pool
	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("connected to database")

		journal := store.NewPostgresJournal(pool)
		if err := journal.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare journal schema", zap.Error(err))
		}
		opts = append(opts, store.WithJournal(journal))
	} else {
		logger.Warn("DATABASE_URL not set, atoms will not survive a restart")
	}

	space := store.NewAtomSpace(types, logger, opts...)
	if pool != nil {
		n, err := space.Replay(ctx)
		if err != nil {
			logger.Fatal("failed to replay journal", zap.Error(err))
		}
		logger.Info("replayed journal", zap.Int("atoms", n))
	}

	app, err := api.NewApp(space, pool, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}
	app.Start(ctx)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("version", buildconfig.Version()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
