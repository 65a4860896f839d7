package syncer

import (
	"context"
	"time"

	"github.com/orderbot/orderbot-sync/internal/dao/lockdao"
	"github.com/orderbot/orderbot-sync/internal/dao/rundao"
)

// LockDAO is the subset of lockdao.DAO used by DynamoLocker
type LockDAO interface {
	Acquire(ctx context.Context, input lockdao.AcquireInput) (*lockdao.Record, bool, error)
	Release(ctx context.Context, input lockdao.ReleaseInput) error
}

// DynamoLocker holds the {env}/sync lock in DynamoDB
type DynamoLocker struct {
	dao LockDAO
	env string
	ttl time.Duration
}

func NewDynamoLocker(dao LockDAO, env string, ttl time.Duration) *DynamoLocker {
	return &DynamoLocker{dao: dao, env: env, ttl: ttl}
}

func (l *DynamoLocker) Lock(ctx context.Context, runID string) (bool, error) {
	_, acquired, err := l.dao.Acquire(ctx, lockdao.AcquireInput{
		Env:   l.env,
		Job:   Job,
		RunID: runID,
		TTL:   l.ttl,
	})
	return acquired, err
}

func (l *DynamoLocker) Unlock(ctx context.Context, runID string) error {
	return l.dao.Release(ctx, lockdao.ReleaseInput{
		ID:    lockdao.NewID(l.env, Job),
		RunID: runID,
	})
}

// RunDAO is the subset of rundao.DAO used by RunRecorder
type RunDAO interface {
	Create(ctx context.Context, input rundao.CreateInput) (rundao.Record, error)
	Finish(ctx context.Context, input rundao.FinishInput) error
}

// RunRecorder writes sync runs to the run history table
type RunRecorder struct {
	dao RunDAO
	env string
}

func NewRunRecorder(dao RunDAO, env string) *RunRecorder {
	return &RunRecorder{dao: dao, env: env}
}

func (r *RunRecorder) Start(ctx context.Context, runID string) error {
	_, err := r.dao.Create(ctx, rundao.CreateInput{
		Job: rundao.JobSync,
		Env: r.env,
		SK:  runID,
	})
	return err
}

func (r *RunRecorder) Finish(ctx context.Context, runID string, summary Summary, runErr error) error {
	input := rundao.FinishInput{
		PK:         rundao.NewPK(rundao.JobSync, r.env),
		SK:         runID,
		Status:     rundao.StatusSuccess,
		Orders:     summary.Orders,
		LineItems:  summary.LineItems,
		Inserted:   summary.Inserted,
		Duplicates: summary.Duplicates,
	}
	if runErr != nil {
		msg := runErr.Error()
		input.Status = rundao.StatusFailed
		input.ErrorMsg = &msg
	}
	return r.dao.Finish(ctx, input)
}
