package main

import (
	"context"
	"os"

	"github.com/orderbot/orderbot-sync/cmd/orderbot/commands"
	"github.com/orderbot/orderbot-sync/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "orderbot",
		Usage: "Publish the orderbot-sync image and run the Squarespace order sync",
		Description: `Tooling for the orderbot-sync container.

This tool provides commands for:
  - Building, tagging and pushing orderbot-sync:latest to ECR
  - Syncing this year's Squarespace orders into Postgres
  - Applying the orders schema
  - Listing publish and sync run history`,
		Commands: []*cli.Command{
			commands.PublishCommand(&logger),
			commands.SyncCommand(&logger),
			commands.MigrateCommand(&logger),
			commands.RunsCommand(&logger),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(commands.ExitCode(err))
	}
}
