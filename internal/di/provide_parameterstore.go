package di

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/services"
	"github.com/rs/zerolog"
)

// ProvideSSMClient provides an SSM client for Parameter Store access
// Returns nil if SSM is disabled (for local development)
func ProvideSSMClient(awsConfig aws.Config) *ssm.Client {
	// Check if SSM should be disabled (local development)
	if ssmDisabled() {
		return nil
	}

	return ssm.NewFromConfig(awsConfig)
}

// ProvideParameterStore provides a ParameterStore implementation
// Uses SSM Parameter Store in AWS, falls back to environment variables when disabled
func ProvideParameterStore(ctx context.Context, ssmClient *ssm.Client, env string) services.ParameterStore {
	logger := zerolog.Ctx(ctx)

	if ssmClient == nil {
		logger.Debug().Msg("Using environment variables for configuration (SSM disabled)")
		return services.NewEnvParameterStore(env)
	}

	logger.Debug().Msg("Using AWS Systems Manager Parameter Store for configuration")
	return services.NewSSMParameterStore(ssmClient, env)
}

// SecretsLoader is implemented by *services.SecretsManagerService
type SecretsLoader interface {
	GetSyncSecrets(ctx context.Context, secretName string) (*services.SyncSecrets, error)
}

// ProvideAppConfig loads application configuration from Parameter Store or environment variables,
// then overlays Secrets Manager values.
func ProvideAppConfig(ctx context.Context, store services.ParameterStore, secrets *services.SecretsManagerService, env string) (*services.Config, error) {
	return loadAppConfig(ctx, store, secrets, env, !ssmDisabled())
}

// loadAppConfig reads the secret named in config, or orderbot-sync/{env}/secrets when
// useDefaultSecret is set. A missing default secret is not an error.
func loadAppConfig(ctx context.Context, store services.ParameterStore, secrets SecretsLoader, env string, useDefaultSecret bool) (*services.Config, error) {
	logger := zerolog.Ctx(ctx)

	config, err := store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	secretName := config.SecretName
	if secretName == "" && useDefaultSecret {
		secretName = services.DefaultSecretName(env)
	}

	if secretName != "" {
		values, err := secrets.GetSyncSecrets(ctx, secretName)
		switch {
		case err == nil:
			values.Apply(config)
		case errors.Is(err, apperrors.ErrSecretNotFound) && config.SecretName == "":
			logger.Debug().Str("secret_name", secretName).Msg("no secrets document, using parameters only")
		default:
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if config.LogLevel != "" {
		if level, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		} else {
			logger.Warn().Str("log_level", config.LogLevel).Msg("ignoring invalid log level")
		}
	}

	logger.Debug().
		Bool("has_api_key", config.SquarespaceAPIKey != "").
		Bool("has_database", config.HasDatabase()).
		Str("runs_table", config.RunsTable).
		Str("locks_table", config.LocksTable).
		Msg("Configuration loaded successfully")

	return config, nil
}

func ssmDisabled() bool {
	return os.Getenv("DISABLE_SSM") == "true"
}
