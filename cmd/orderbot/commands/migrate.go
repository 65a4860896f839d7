package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	orderbot "github.com/orderbot/orderbot-sync"
	"github.com/orderbot/orderbot-sync/internal/di"
	"github.com/orderbot/orderbot-sync/internal/postgres"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type schemaMigrator interface {
	Migrate(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
	Close()
}

// poolMigrator applies the embedded migrations through a pgx pool
type poolMigrator struct {
	pool *pgxpool.Pool
}

func (m poolMigrator) Migrate(ctx context.Context) error {
	return postgres.Migrate(ctx, m.pool, orderbot.Migrations, "migrations")
}

func (m poolMigrator) Version(ctx context.Context) (int64, error) {
	return postgres.Version(ctx, m.pool)
}

func (m poolMigrator) Close() {
	m.pool.Close()
}

// MigrateCommand returns the migrate command that applies the embedded schema migrations
func MigrateCommand(logger *zerolog.Logger) *cli.Command {
	return newMigrateCommand(logger, func(env string) (schemaMigrator, error) {
		container, err := di.New(env)
		if err != nil {
			return nil, fmt.Errorf("failed to create DI container: %w", err)
		}

		pool, err := di.Get[*pgxpool.Pool](container)
		if err != nil {
			return nil, err
		}
		return poolMigrator{pool: pool}, nil
	})
}

func newMigrateCommand(logger *zerolog.Logger, open func(env string) (schemaMigrator, error)) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the orders schema migrations",
		Description: `Applies the embedded goose migrations to the orders database.

Examples:
  # Migrate using DATABASE_URL
  DISABLE_SSM=true DATABASE_URL=postgres://localhost/orders orderbot migrate

  # Show the current schema version only
  orderbot migrate --env prd --status`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment (dev, stg, or prd) - determines which parameters to use",
				Value:   "dev",
				EnvVars: []string{"ENV"},
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Print the schema version without migrating",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			migrator, err := open(c.String("env"))
			if err != nil {
				return err
			}
			defer migrator.Close()

			if !c.Bool("status") {
				if err := migrator.Migrate(ctx); err != nil {
					return err
				}
			}

			version, err := migrator.Version(ctx)
			if err != nil {
				return err
			}

			logger.Info().Int64("version", version).Msg("schema version")
			return nil
		},
	}
}
