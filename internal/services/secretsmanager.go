package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerService struct {
	client SecretsManagerAPI
}

// SyncSecrets is the JSON document stored in orderbot-sync/{env}/secrets
type SyncSecrets struct {
	SquarespaceAPIKey string `json:"squarespace_api_key"`
	DBPassword        string `json:"db_password"`
}

func NewSecretsManagerService(client SecretsManagerAPI) *SecretsManagerService {
	return &SecretsManagerService{
		client: client,
	}
}

// DefaultSecretName returns the secret name used when none is configured
func DefaultSecretName(env string) string {
	return fmt.Sprintf("orderbot-sync/%s/secrets", env)
}

// GetSyncSecrets fetches and decodes the sync secrets document
func (s *SecretsManagerService) GetSyncSecrets(ctx context.Context, secretName string) (*SyncSecrets, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSecretNotFound, secretName)
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretName)
	}

	var secrets SyncSecrets
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret %s: %w", secretName, err)
	}

	return &secrets, nil
}

// Apply overlays non-empty secret values onto config
func (s *SyncSecrets) Apply(config *Config) {
	if s.SquarespaceAPIKey != "" {
		config.SquarespaceAPIKey = s.SquarespaceAPIKey
	}
	if s.DBPassword != "" {
		config.DBPass = s.DBPassword
	}
}
