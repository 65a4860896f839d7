package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/orderbot/orderbot-sync/internal/di"
	"github.com/orderbot/orderbot-sync/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// SyncRunner runs one sync
type SyncRunner interface {
	Run(ctx context.Context) (syncer.Summary, error)
}

// SyncCommand returns the sync command that copies this year's orders into Postgres
func SyncCommand(logger *zerolog.Logger) *cli.Command {
	return newSyncCommand(logger, func(env string, lockTTL time.Duration) (SyncRunner, error) {
		container, err := di.New(env, di.WithLockTTL(lockTTL))
		if err != nil {
			return nil, fmt.Errorf("failed to create DI container: %w", err)
		}
		return di.Get[*syncer.Syncer](container)
	})
}

func newSyncCommand(logger *zerolog.Logger, newRunner func(env string, lockTTL time.Duration) (SyncRunner, error)) *cli.Command {
	return &cli.Command{
		Name:    "sync",
		Aliases: []string{"s"},
		Usage:   "Copy this year's Squarespace orders into the orders database",
		Description: `Fetches every order modified between Jan 1 and Dec 30 of the current UTC year
and inserts one row per line item into syc_orders. Line items that already
exist are skipped and counted as duplicates.

Configuration comes from SSM Parameter Store under /{env}/orderbot-sync, or from
environment variables when DISABLE_SSM=true (SQUARESPACE_API_KEY, DB_USER,
DB_PASS, DB_SERVER, DATABASE_URL, RUNS_TABLE, LOCKS_TABLE).

Examples:
  # Local run against environment variables
  DISABLE_SSM=true orderbot sync --env dev

  # Run with prd parameters
  orderbot sync --env prd`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment (dev, stg, or prd) - determines which parameters and tables to use",
				Value:   "dev",
				EnvVars: []string{"ENV"},
			},
			&cli.DurationFlag{
				Name:  "lock-ttl",
				Usage: "How long a sync lock is honored when LOCKS_TABLE is configured",
				Value: 30 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			runner, err := newRunner(c.String("env"), c.Duration("lock-ttl"))
			if err != nil {
				return err
			}

			summary, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			logger.Info().
				Str("run_id", summary.RunID).
				Int("orders", summary.Orders).
				Int("line_items", summary.LineItems).
				Int("inserted", summary.Inserted).
				Int("duplicates", summary.Duplicates).
				Dur("duration", summary.Duration).
				Msg("Data inserted successfully")
			return nil
		},
	}
}
