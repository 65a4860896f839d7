package di

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStore struct {
	config services.Config
	err    error
}

func (s *staticStore) GetConfig(context.Context) (*services.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	config := s.config
	return &config, nil
}

type fakeSecrets struct {
	requested string
	secrets   *services.SyncSecrets
	err       error
}

func (f *fakeSecrets) GetSyncSecrets(_ context.Context, secretName string) (*services.SyncSecrets, error) {
	f.requested = secretName
	return f.secrets, f.err
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestLoadAppConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("overlays default secret", func(t *testing.T) {
		secrets := &fakeSecrets{secrets: &services.SyncSecrets{SquarespaceAPIKey: "key", DBPassword: "pw"}}
		store := &staticStore{config: services.Config{DBUser: "u", DBServer: "db"}}

		config, err := loadAppConfig(ctx, store, secrets, "prd", true)
		require.NoError(t, err)
		assert.Equal(t, "orderbot-sync/prd/secrets", secrets.requested)
		assert.Equal(t, "key", config.SquarespaceAPIKey)
		assert.True(t, config.HasDatabase())
	})

	t.Run("missing default secret is tolerated", func(t *testing.T) {
		secrets := &fakeSecrets{err: apperrors.ErrSecretNotFound}
		store := &staticStore{config: services.Config{SquarespaceAPIKey: "from-ssm"}}

		config, err := loadAppConfig(ctx, store, secrets, "prd", true)
		require.NoError(t, err)
		assert.Equal(t, "from-ssm", config.SquarespaceAPIKey)
	})

	t.Run("missing named secret fails", func(t *testing.T) {
		secrets := &fakeSecrets{err: apperrors.ErrSecretNotFound}
		store := &staticStore{config: services.Config{SecretName: "custom"}}

		_, err := loadAppConfig(ctx, store, secrets, "prd", true)
		assert.ErrorIs(t, err, apperrors.ErrSecretNotFound)
		assert.Equal(t, "custom", secrets.requested)
	})

	t.Run("env store skips secrets unless named", func(t *testing.T) {
		secrets := &fakeSecrets{}
		_, err := loadAppConfig(ctx, &staticStore{}, secrets, "dev", false)
		require.NoError(t, err)
		assert.Empty(t, secrets.requested)
	})

	t.Run("store error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := loadAppConfig(ctx, &staticStore{err: boom}, &fakeSecrets{}, "dev", false)
		assert.ErrorIs(t, err, boom)
	})
}

func TestProvideDAOs_Disabled(t *testing.T) {
	client := dynamodb.New(dynamodb.Options{Region: "us-west-2"})
	config := &services.Config{}

	assert.Nil(t, ProvideRunDAO(config, client))
	assert.Nil(t, ProvideLockDAO(config, client))
}

func TestProvidePostgres_RequiresDatabase(t *testing.T) {
	_, err := ProvidePostgres(context.Background(), &services.Config{})
	assert.ErrorIs(t, err, apperrors.ErrDatabaseRequired)
}

func TestProvideSquarespaceClient_RequiresAPIKey(t *testing.T) {
	_, err := ProvideSquarespaceClient(&services.Config{})
	assert.ErrorIs(t, err, apperrors.ErrAPIKeyRequired)
}
