package services

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const (
	defaultDBHostSuffix = ".us-west-2.retooldb.com"
	defaultDBName       = "retool"
	defaultDBSSLMode    = "require"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	SquarespaceAPIKey  string
	SquarespaceBaseURL string
	DatabaseURL        string
	DBUser             string
	DBPass             string
	DBServer           string
	DBHostSuffix       string
	DBName             string
	DBSSLMode          string
	LogLevel           string
	RunsTable          string
	LocksTable         string
	SecretName         string
}

// DSN returns the Postgres connection string. DatabaseURL wins when set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     c.DBServer + c.DBHostSuffix,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// HasDatabase reports whether enough settings are present to build a DSN
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != "" || (c.DBUser != "" && c.DBPass != "" && c.DBServer != "")
}

func (c *Config) applyDefaults() {
	if c.DBHostSuffix == "" {
		c.DBHostSuffix = defaultDBHostSuffix
	}
	if c.DBName == "" {
		c.DBName = defaultDBName
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = defaultDBSSLMode
	}
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the subset of the SSM client used by SSMParameterStore
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
	}
}

// GetConfig loads all parameters under /{env}/orderbot-sync
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/orderbot-sync", s.env)

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           &path,
			Recursive:      boolPtr(true),
			WithDecryption: boolPtr(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		nextToken = result.NextToken
	}

	key := func(name string) string {
		return params[fmt.Sprintf("%s/%s", path, name)]
	}

	config := &Config{
		SquarespaceAPIKey:  key("squarespace-api-key"),
		SquarespaceBaseURL: key("squarespace-base-url"),
		DatabaseURL:        key("database-url"),
		DBUser:             key("db-user"),
		DBPass:             key("db-pass"),
		DBServer:           key("db-server"),
		DBHostSuffix:       key("db-host-suffix"),
		DBName:             key("db-name"),
		DBSSLMode:          key("db-sslmode"),
		LogLevel:           key("log-level"),
		RunsTable:          key("runs-table"),
		LocksTable:         key("locks-table"),
		SecretName:         key("secret-name"),
	}
	config.applyDefaults()

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		SquarespaceAPIKey:  os.Getenv("SQUARESPACE_API_KEY"),
		SquarespaceBaseURL: os.Getenv("SQUARESPACE_BASE_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBUser:             os.Getenv("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBServer:           os.Getenv("DB_SERVER"),
		DBHostSuffix:       os.Getenv("DB_HOST_SUFFIX"),
		DBName:             os.Getenv("DB_NAME"),
		DBSSLMode:          os.Getenv("DB_SSLMODE"),
		LogLevel:           os.Getenv("LOGLEVEL"),
		RunsTable:          os.Getenv("RUNS_TABLE"),
		LocksTable:         os.Getenv("LOCKS_TABLE"),
		SecretName:         os.Getenv("SECRET_NAME"),
	}
	config.applyDefaults()

	return config, nil
}

func boolPtr(b bool) *bool {
	return &b
}
