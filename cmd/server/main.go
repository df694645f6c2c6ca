package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/credo/internal/api"
	"github.com/Harshitk-cp/credo/internal/buildconfig"
	"github.com/Harshitk-cp/credo/internal/config"
	"github.com/Harshitk-cp/credo/internal/store"
	"github.com/Harshitk-cp/credo/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var backend api.Backend
	switch driver := config.StoreDriver(); driver {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required")
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("connected to database")

		applied, err := store.Migrate(ctx, pool, config.MigrationsPath(), logger)
		if err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("files", applied))
		}
		backend = api.PostgresBackend(pool)

	case "sqlite":
		db, err := sqlite.Open(config.SQLitePath())
		if err != nil {
			logger.Fatal("failed to open sqlite database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		logger.Info("opened sqlite database", zap.String("path", config.SQLitePath()))
		backend = api.SQLiteBackend(db)

	default:
		logger.Fatal("unknown STORE_DRIVER (valid options: postgres, sqlite)", zap.String("driver", driver))
	}

	app := api.NewApp(backend, logger)

	// Start background services
	app.EmbeddingWorker.Start()
	app.IndexFlusher.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("commit", buildconfig.Commit()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background services; the flusher writes dirty indexes on the way out.
	app.EmbeddingWorker.Stop()
	app.Memory.Wait()
	app.IndexFlusher.Stop()

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
