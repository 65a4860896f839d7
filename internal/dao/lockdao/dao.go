package lockdao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/savaki/ddb/v2"
)

const (
	lockSK         = "LOCK"
	defaultLockTTL = 30 * time.Minute // a crashed Lambda never holds the lock longer than this
)

// TableName derives the lock table name for an environment
func TableName(env string) string {
	return fmt.Sprintf("orderbot-sync-%s-locks", env)
}

// PK represents the partition key: {env}/{job}
type PK string

// NewPK creates a partition key from env and job
func NewPK(env, job string) PK {
	return PK(fmt.Sprintf("%s/%s", env, job))
}

// ParsePK parses a partition key into env and job components
func ParsePK(pk PK) (env, job string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {env}/{job}", s)
	}
	return parts[0], parts[1], nil
}

func (pk PK) String() string {
	return string(pk)
}

// ID represents a lock ID in format {env}/{job}:LOCK
type ID string

// NewID creates an ID from env and job
func NewID(env, job string) ID {
	return ID(fmt.Sprintf("%s:%s", NewPK(env, job), lockSK))
}

// ParseID parses an ID into env and job components
func ParseID(id ID) (env, job string, err error) {
	s := string(id)
	pk, sk, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(sk, ":") {
		return "", "", fmt.Errorf("invalid ID format: %s, expected {env}/{job}:LOCK", s)
	}
	if sk != lockSK {
		return "", "", fmt.Errorf("invalid ID format: %s, expected SK to be 'LOCK', got '%s'", s, sk)
	}
	return ParsePK(PK(pk))
}

func (id ID) String() string {
	return string(id)
}

// Record is a held lock
type Record struct {
	PK         PK     `ddb:"hash" dynamodbav:"pk"`  // {env}/{job}
	SK         string `ddb:"range" dynamodbav:"sk"` // Always "LOCK"
	RunID      string `dynamodbav:"run_id"`         // KSUID of the run holding the lock
	AcquiredAt int64  `dynamodbav:"acquired_at"`
	TTL        int64  `dynamodbav:"ttl"` // DynamoDB TTL expiry
}

func (r *Record) GetID() ID {
	env, job, _ := ParsePK(r.PK)
	return NewID(env, job)
}

// Expired reports whether the lock outlived its TTL but has not yet been swept by DynamoDB
func (r *Record) Expired(now time.Time) bool {
	return r.TTL > 0 && now.Unix() >= r.TTL
}

type AcquireInput struct {
	Env   string
	Job   string
	RunID string
	TTL   time.Duration // zero uses the default
}

type ReleaseInput struct {
	ID    ID
	RunID string // must match the lock holder
}

// DAO provides data access operations for job locks
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

func New(client ddb.DynamoDBAPI, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Acquire attempts to take the lock for env/job.
// Returns false without error when another run holds an unexpired lock.
// The write is conditional so concurrent acquirers cannot both succeed.
func (d *DAO) Acquire(ctx context.Context, input AcquireInput) (*Record, bool, error) {
	now := time.Now()

	ttl := input.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	record := &Record{
		PK:         NewPK(input.Env, input.Job),
		SK:         lockSK,
		RunID:      input.RunID,
		AcquiredAt: now.Unix(),
		TTL:        now.Add(ttl).Unix(),
	}

	err := d.table.Put(record).
		Condition("attribute_not_exists(#PK) OR #TTL <= ? OR #RunID = ?", now.Unix(), input.RunID).
		RunWithContext(ctx)
	if err != nil {
		if isConditionFailed(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to create lock: %w", err)
	}

	return record, true, nil
}

// Find retrieves a lock record by ID. Returns nil if not found.
func (d *DAO) Find(ctx context.Context, id ID) (*Record, error) {
	env, job, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	var record Record
	err = d.table.Get(NewPK(env, job).String()).
		Range(lockSK).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return nil, nil
	}

	return &record, nil
}

// Release deletes the lock if it is held by input.RunID.
// Releasing a lock that no longer exists is a no-op.
func (d *DAO) Release(ctx context.Context, input ReleaseInput) error {
	env, job, err := ParseID(input.ID)
	if err != nil {
		return err
	}

	err = d.table.Delete(NewPK(env, job).String()).
		Range(lockSK).
		Condition("attribute_not_exists(#PK) OR #RunID = ?", input.RunID).
		RunWithContext(ctx)
	if err == nil {
		return nil
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	existing, err := d.Find(ctx, input.ID)
	if err != nil {
		return fmt.Errorf("failed to check lock: %w", err)
	}
	if existing == nil {
		return nil
	}
	return fmt.Errorf("lock not held by run %s (held by %s)", input.RunID, existing.RunID)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
