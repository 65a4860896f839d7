package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/orderbot/orderbot-sync/internal/dao/rundao"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/publish"
	"github.com/orderbot/orderbot-sync/internal/services"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// publishDeps are swapped out in tests
type publishDeps struct {
	runner   publish.Runner
	stdout   io.Writer
	verifier func(ctx context.Context, registry services.RegistryInfo) (imageDescriber, error)
	runs     func(ctx context.Context, table string) (runRecorder, error)
}

type imageDescriber interface {
	DescribeImage(ctx context.Context, registry services.RegistryInfo, repositoryName, tag string) (*services.ImageInfo, error)
}

type runRecorder interface {
	Create(ctx context.Context, input rundao.CreateInput) (rundao.Record, error)
	Finish(ctx context.Context, input rundao.FinishInput) error
}

func defaultPublishDeps() publishDeps {
	return publishDeps{
		runner: publish.NewExecRunner(),
		stdout: os.Stdout,
		verifier: func(ctx context.Context, registry services.RegistryInfo) (imageDescriber, error) {
			return services.NewECRService(ctx, registry.Region)
		},
		runs: func(ctx context.Context, table string) (runRecorder, error) {
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			return rundao.New(dynamodb.NewFromConfig(cfg), table), nil
		},
	}
}

// PublishCommand returns the publish command that builds, tags and pushes the image
func PublishCommand(logger *zerolog.Logger) *cli.Command {
	return newPublishCommand(logger, defaultPublishDeps())
}

func newPublishCommand(logger *zerolog.Logger, deps publishDeps) *cli.Command {
	return &cli.Command{
		Name:    "publish",
		Aliases: []string{"p"},
		Usage:   "Build orderbot-sync for linux/amd64 and push it to $AWS_ECR_REPO",
		Description: `Runs, in order, stopping at the first failure:

  docker build --platform linux/amd64 -t orderbot-sync .
  docker tag orderbot-sync:latest ${AWS_ECR_REPO}/orderbot-sync:latest
  docker push ${AWS_ECR_REPO}/orderbot-sync:latest

AWS_ECR_REPO is used verbatim. Registry login is not performed; run
"aws ecr get-login-password | docker login ..." beforehand.

Examples:
  # Show the commands without running them
  AWS_ECR_REPO=123456789012.dkr.ecr.us-east-1.amazonaws.com orderbot publish --dry-run

  # Publish and confirm the tag through the ECR API
  orderbot publish --repo 123456789012.dkr.ecr.us-east-1.amazonaws.com --verify

  # Record the publish in the run history table
  orderbot publish --env prd --record`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Registry prefix for the pushed image",
				EnvVars: []string{publish.RegistryEnvVar},
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Docker build context directory",
				Value: ".",
			},
			&cli.StringFlag{
				Name:    "docker",
				Usage:   "Docker executable",
				Value:   "docker",
				EnvVars: []string{"DOCKER"},
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Print the commands instead of running them",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "After pushing, describe the tag through the ECR API",
			},
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Record the publish in the run history table",
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment (dev, stg, or prd) used for the run history table",
				Value:   "dev",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "runs-table",
				Usage:   "Run history table (default orderbot-sync-{env}-runs)",
				EnvVars: []string{"RUNS_TABLE"},
			},
		},
		Action: func(c *cli.Context) error {
			return publishAction(c, logger, deps)
		},
	}
}

func publishAction(c *cli.Context, logger *zerolog.Logger, deps publishDeps) error {
	ctx := logger.WithContext(c.Context)
	repo := c.String("repo")

	publisher := publish.New(deps.runner,
		publish.WithBinary(c.String("docker")),
		publish.WithContextDir(c.String("context")),
	)

	if c.Bool("dry-run") {
		if publish.Unqualified(repo) {
			logger.Warn().Str("env_var", publish.RegistryEnvVar).Msg("registry is empty")
		}
		for _, step := range publisher.Plan(repo) {
			fmt.Fprintln(deps.stdout, step.String())
		}
		return nil
	}

	var (
		runs  runRecorder
		runPK rundao.PK
		runSK string
	)
	if c.Bool("record") {
		env := c.String("env")
		table := c.String("runs-table")
		if table == "" {
			table = rundao.TableName(env)
		}

		recorder, err := deps.runs(ctx, table)
		if err == nil {
			runSK = ksuid.New().String()
			_, err = recorder.Create(ctx, rundao.CreateInput{
				Job:       rundao.JobPublish,
				Env:       env,
				SK:        runSK,
				Reference: publish.RemoteReference(repo),
			})
		}
		if err != nil {
			logger.Warn().Err(err).Str("table", table).Msg("failed to record publish start, publishing without run history")
		} else {
			runs, runPK = recorder, rundao.NewPK(rundao.JobPublish, env)
		}
	}

	result, err := publisher.Run(ctx, repo)

	if runs != nil {
		finish := rundao.FinishInput{PK: runPK, SK: runSK, Status: rundao.StatusSuccess}
		if err != nil {
			msg := err.Error()
			finish.Status = rundao.StatusFailed
			finish.ErrorMsg = &msg
		}
		if ferr := runs.Finish(ctx, finish); ferr != nil {
			logger.Warn().Err(ferr).Msg("failed to record publish result")
		}
	}

	if err != nil {
		return err
	}

	if c.Bool("verify") {
		return verifyPublish(ctx, logger, deps, repo, result)
	}
	return nil
}

func verifyPublish(ctx context.Context, logger *zerolog.Logger, deps publishDeps, repo string, result publish.Result) error {
	registry, err := services.ParseRegistry(repo)
	if errors.Is(err, apperrors.ErrNotECRRegistry) {
		logger.Info().Str("repo", repo).Msg("not an ECR registry, skipping verification")
		return nil
	}
	if err != nil {
		return err
	}

	describer, err := deps.verifier(ctx, registry)
	if err != nil {
		return fmt.Errorf("failed to create ECR service: %w", err)
	}

	image, err := describer.DescribeImage(ctx, registry, registry.RepositoryName(publish.ImageName), publish.Tag)
	if err != nil {
		return fmt.Errorf("failed to verify %s: %w", result.RemoteReference, err)
	}

	logger.Info().
		Str("repository", image.Repository).
		Str("tag", image.Tag).
		Str("digest", image.Digest).
		Int64("size_bytes", image.SizeBytes).
		Time("pushed_at", image.PushedAt).
		Msg("verified pushed image")

	return nil
}
