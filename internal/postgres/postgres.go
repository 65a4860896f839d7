// Package postgres opens the orders database and applies its migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Options defines the connection pool settings.
type Options struct {
	// DSN is a postgres connection string or URL
	DSN string
	// MaxConns caps the pool size; zero keeps the pgx default
	MaxConns int32
	// ConnMaxLifetime is the maximum amount of time a connection may be reused
	ConnMaxLifetime time.Duration
}

// New creates a pgx pool and verifies it can reach the server.
func New(ctx context.Context, options Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(options.DSN)
	if err != nil {
		return nil, fmt.Errorf("could not parse pgxpool config: %w", err)
	}
	if options.MaxConns > 0 {
		cfg.MaxConns = options.MaxConns
	}
	if options.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = options.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not reach database: %w", err)
	}

	return pool, nil
}

// Migrate applies every pending migration found in dir of migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, dir string) error {
	// goose works on database/sql, so wrap the pool
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return migrate(ctx, db, migrations, dir)
}

func migrate(ctx context.Context, db *sql.DB, migrations fs.FS, dir string) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("could not set goose dialect to postgres: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("could not migrate orders database: %w", err)
	}

	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("could not set goose dialect to postgres: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
