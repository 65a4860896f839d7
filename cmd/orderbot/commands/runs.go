package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/olekukonko/tablewriter"
	"github.com/orderbot/orderbot-sync/internal/dao/rundao"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type runLister interface {
	List(ctx context.Context, job rundao.Job, env string, limit int) ([]rundao.Record, error)
	Latest(ctx context.Context, env string) ([]rundao.Record, error)
}

// RunsCommand returns the runs command for inspecting publish and sync history
func RunsCommand(logger *zerolog.Logger) *cli.Command {
	return newRunsCommand(logger, os.Stdout, func(ctx context.Context, table string) (runLister, error) {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return rundao.New(dynamodb.NewFromConfig(cfg), table), nil
	})
}

func newRunsCommand(logger *zerolog.Logger, out io.Writer, newDAO func(ctx context.Context, table string) (runLister, error)) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "runs-table",
				Usage:   "Run history table (default orderbot-sync-{env}-runs)",
				EnvVars: []string{"RUNS_TABLE"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		}
	}

	open := func(c *cli.Context) (runLister, error) {
		table := c.String("runs-table")
		if table == "" {
			table = rundao.TableName(c.String("env"))
		}
		return newDAO(c.Context, table)
	}

	return &cli.Command{
		Name:    "runs",
		Aliases: []string{"r"},
		Usage:   "Show publish and sync run history",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List runs for a job, newest first",
				Description: `Examples:
  orderbot runs list --env prd --job sync
  orderbot runs list --env prd --job publish --limit 5 --json`,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "job",
						Usage: "Job name (publish or sync)",
						Value: string(rundao.JobSync),
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum runs to show",
						Value: 20,
					},
				}, flags()...),
				Action: func(c *cli.Context) error {
					job := rundao.Job(c.String("job"))
					if job != rundao.JobSync && job != rundao.JobPublish {
						return fmt.Errorf("--job must be %q or %q", rundao.JobSync, rundao.JobPublish)
					}

					dao, err := open(c)
					if err != nil {
						return err
					}

					records, err := dao.List(c.Context, job, c.String("env"), c.Int("limit"))
					if err != nil {
						return err
					}

					logger.Debug().Int("count", len(records)).Str("job", string(job)).Msg("listed runs")
					return displayRuns(out, records, c.Bool("json"))
				},
			},
			{
				Name:  "latest",
				Usage: "Show the most recent run of each job",
				Flags: flags(),
				Action: func(c *cli.Context) error {
					dao, err := open(c)
					if err != nil {
						return err
					}

					records, err := dao.Latest(c.Context, c.String("env"))
					if err != nil {
						return err
					}

					return displayRuns(out, records, c.Bool("json"))
				},
			},
		},
	}
}

func displayRuns(out io.Writer, records []rundao.Record, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []rundao.Record{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Job", "Run", "Status", "Created", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, record := range records {
		table.Append([]string{
			string(record.Job),
			record.SK,
			string(record.Status),
			time.Unix(record.CreatedAt, 0).UTC().Format(time.RFC3339),
			runDetail(record),
		})
	}
	table.Render()
	return nil
}

func runDetail(record rundao.Record) string {
	var parts []string
	if record.Reference != "" {
		parts = append(parts, record.Reference)
	}
	if record.Job == rundao.JobSync && record.Status != rundao.StatusInProgress {
		parts = append(parts, fmt.Sprintf("orders=%d inserted=%d duplicates=%d", record.Orders, record.Inserted, record.Duplicates))
	}
	if record.ErrorMsg != nil {
		parts = append(parts, "error: "+*record.ErrorMsg)
	}
	return strings.Join(parts, " ")
}
