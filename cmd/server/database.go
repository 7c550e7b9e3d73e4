package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/caro-api/internal/config"
	"github.com/phrazzld/caro-api/internal/platform/postgres"
	"github.com/phrazzld/caro-api/internal/platform/sqlite"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
)

// openDatabase connects to the configured backend and returns the dialect
// the stores and migrations must use with it.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, sqlstore.Dialect, error) {
	var (
		dialect sqlstore.Dialect
		dsn     = cfg.URL
	)

	switch cfg.Driver {
	case "postgres":
		dialect = postgres.Dialect()
	case "sqlite":
		dialect = sqlite.Dialect()
		prepared, err := sqlite.PrepareDSN(cfg.URL)
		if err != nil {
			return nil, sqlstore.Dialect{}, fmt.Errorf("invalid sqlite database url: %w", err)
		}
		dsn = prepared
	default:
		return nil, sqlstore.Dialect{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlstore.Open(ctx, dialect, dsn, sqlstore.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnectTimeout:  cfg.ConnectTimeout,
	}, logger)
	if err != nil {
		return nil, sqlstore.Dialect{}, err
	}
	return db, dialect, nil
}
