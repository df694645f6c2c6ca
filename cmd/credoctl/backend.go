package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/api"
	"github.com/Harshitk-cp/credo/internal/config"
	"github.com/Harshitk-cp/credo/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// session is an open backend plus whatever must be closed afterwards.
type session struct {
	backend api.Backend
	pool    *pgxpool.Pool
	logger  *zap.Logger
	close   func()
}

func newCLILogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openSession(ctx context.Context) (*session, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newCLILogger()

	driver := config.StoreDriver()
	path := config.SQLitePath()
	if sqlitePath != "" {
		driver, path = "sqlite", sqlitePath
	}

	switch driver {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		return &session{
			backend: api.PostgresBackend(pool),
			pool:    pool,
			logger:  logger,
			close: func() {
				pool.Close()
				_ = logger.Sync()
			},
		}, nil

	case "sqlite":
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		return &session{
			backend: api.SQLiteBackend(db),
			logger:  logger,
			close: func() {
				_ = db.Close()
				_ = logger.Sync()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q (valid options: postgres, sqlite)", driver)
}
