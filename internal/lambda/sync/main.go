package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/orderbot/orderbot-sync/internal/di"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const successMessage = "Data inserted successfully!"

// Runner runs one sync
type Runner interface {
	Run(ctx context.Context) (syncer.Summary, error)
}

type Handler struct {
	resolve func() (Runner, error)

	mu     sync.Mutex
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// NewLazyHandler resolves the runner on first invocation and retries on
// later invocations until resolution succeeds.
func NewLazyHandler(resolve func() (Runner, error)) *Handler {
	return &Handler{resolve: resolve}
}

func (h *Handler) getRunner() (Runner, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.runner != nil {
		return h.runner, nil
	}

	runner, err := h.resolve()
	if err != nil {
		return nil, err
	}
	h.runner = runner
	return runner, nil
}

// HandleScheduledEvent runs the sync for an EventBridge schedule tick.
// Failures are reported in the response so the async invocation is not retried.
func (h *Handler) HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) (events.APIGatewayProxyResponse, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("event_id", event.ID).
		Str("detail_type", event.DetailType).
		Msg("Starting order sync")

	runner, err := h.getRunner()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve syncer")
		return response(http.StatusInternalServerError, err.Error()), nil
	}

	summary, err := runner.Run(ctx)
	switch {
	case err == nil:
		return response(http.StatusOK, successMessage), nil
	case errors.Is(err, apperrors.ErrSyncInProgress):
		logger.Warn().Msg("Skipping sync, another run holds the lock")
		return response(http.StatusConflict, err.Error()), nil
	default:
		logger.Error().
			Err(err).
			Str("run_id", summary.RunID).
			Int("orders", summary.Orders).
			Msg("Order sync failed")
		return response(http.StatusInternalServerError, err.Error()), nil
	}
}

// response encodes message as a JSON string body
func response(statusCode int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(message)
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
	}
}

func resolveSyncer(container di.Container) func() (Runner, error) {
	return func() (Runner, error) {
		s, err := di.Get[*syncer.Syncer](container)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "sync").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		handler := NewLazyHandler(resolveSyncer(container))
		wrappedHandler := func(ctx context.Context, event events.CloudWatchEvent) (events.APIGatewayProxyResponse, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleScheduledEvent(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "sync",
		Usage: "Run the order sync once, as the scheduled Lambda would",
		Action: func(c *cli.Context) error {
			handler := NewLazyHandler(resolveSyncer(container))

			ctx := logger.WithContext(c.Context)
			resp, err := handler.HandleScheduledEvent(ctx, events.CloudWatchEvent{
				DetailType: "Scheduled Event",
				Source:     "local",
			})
			if err != nil {
				return err
			}

			logger.Info().Int("status_code", resp.StatusCode).Str("body", resp.Body).Msg("Sync finished")
			if resp.StatusCode != http.StatusOK {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
