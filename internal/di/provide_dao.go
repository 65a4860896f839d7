package di

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orderbot/orderbot-sync/internal/dao/lockdao"
	"github.com/orderbot/orderbot-sync/internal/dao/orderdao"
	"github.com/orderbot/orderbot-sync/internal/dao/rundao"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/postgres"
	"github.com/orderbot/orderbot-sync/internal/services"
	"github.com/orderbot/orderbot-sync/internal/squarespace"
	"github.com/orderbot/orderbot-sync/internal/syncer"
)

// ProvideRunDAO returns nil when no runs table is configured
func ProvideRunDAO(config *services.Config, client *dynamodb.Client) *rundao.DAO {
	if config.RunsTable == "" {
		return nil
	}
	return rundao.New(client, config.RunsTable)
}

// ProvideLockDAO returns nil when no locks table is configured
func ProvideLockDAO(config *services.Config, client *dynamodb.Client) *lockdao.DAO {
	if config.LocksTable == "" {
		return nil
	}
	return lockdao.New(client, config.LocksTable)
}

func ProvidePostgres(ctx context.Context, config *services.Config) (*pgxpool.Pool, error) {
	if !config.HasDatabase() {
		return nil, apperrors.ErrDatabaseRequired
	}
	return postgres.New(ctx, postgres.Options{DSN: config.DSN()})
}

func ProvideOrderDAO(pool *pgxpool.Pool) *orderdao.DAO {
	return orderdao.New(pool)
}

func ProvideSquarespaceClient(config *services.Config) (*squarespace.Client, error) {
	var opts []squarespace.Option
	if config.SquarespaceBaseURL != "" {
		opts = append(opts, squarespace.WithBaseURL(config.SquarespaceBaseURL))
	}
	return squarespace.New(config.SquarespaceAPIKey, opts...)
}

func ProvideSyncer(env string, ttl LockTTL, client *squarespace.Client, orders *orderdao.DAO, runs *rundao.DAO, locks *lockdao.DAO) *syncer.Syncer {
	var opts []syncer.Option
	if locks != nil {
		opts = append(opts, syncer.WithLocker(syncer.NewDynamoLocker(locks, env, time.Duration(ttl))))
	}
	if runs != nil {
		opts = append(opts, syncer.WithRecorder(syncer.NewRunRecorder(runs, env)))
	}
	return syncer.New(client, orders, opts...)
}
