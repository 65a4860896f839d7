package rundao

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"

	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
)

const latest = "latest"

// TableName derives the run history table name for an environment
func TableName(env string) string {
	return fmt.Sprintf("orderbot-sync-%s-runs", env)
}

// Job identifies what a run did
type Job string

const (
	JobPublish Job = "publish"
	JobSync    Job = "sync"
)

// PK represents a DynamoDB partition key in format {job}/{env}
// Example: sync/prd
type PK string

// NewPK creates a new partition key from job and env
func NewPK(job Job, env string) PK {
	return PK(fmt.Sprintf("%s/%s", job, env))
}

// ParsePK parses a partition key into its job and env components
func ParsePK(pk PK) (job Job, env string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {job}/{env}", s)
	}
	return Job(parts[0]), parts[1], nil
}

func (pk PK) String() string {
	return string(pk)
}

// ID represents a run ID in format {job}/{env}:{ksuid}
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID parses a run ID into its partition key and sort key
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid run ID format: %s, expected {job}/{env}:{ksuid}", s)
	}
	return PK(parts[0]), parts[1], nil
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Record is a single publish or sync run
type Record struct {
	PK         PK      `ddb:"hash" dynamodbav:"pk"`  // {job}/{env}
	SK         string  `ddb:"range" dynamodbav:"sk"` // KSUID
	ID         ID      `dynamodbav:"id,omitempty"`   // only set on latest entries
	Job        Job     `dynamodbav:"job,omitempty"`
	Env        string  `dynamodbav:"env,omitempty"`
	Status     Status  `dynamodbav:"status,omitempty"`
	Reference  string  `dynamodbav:"reference,omitempty"` // image reference for publish runs
	Orders     int     `dynamodbav:"orders,omitempty"`
	LineItems  int     `dynamodbav:"line_items,omitempty"`
	Inserted   int     `dynamodbav:"inserted,omitempty"`
	Duplicates int     `dynamodbav:"duplicates,omitempty"`
	ErrorMsg   *string `dynamodbav:"error_msg,omitempty"`
	CreatedAt  int64   `dynamodbav:"created_at,omitempty"`
	FinishedAt *int64  `dynamodbav:"finished_at,omitempty"`
	UpdatedAt  int64   `dynamodbav:"updated_at,omitempty"`
}

// GetID returns the full run ID
func (r *Record) GetID() ID {
	if r.ID != "" {
		return r.ID
	}
	return NewID(r.PK, r.SK)
}

type CreateInput struct {
	Job       Job
	Env       string
	SK        string // KSUID
	Reference string
}

// FinishInput records the terminal state of a run
type FinishInput struct {
	PK         PK
	SK         string
	Status     Status
	ErrorMsg   *string
	Orders     int
	LineItems  int
	Inserted   int
	Duplicates int
}

// DAO provides data access operations for run records
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create writes a new IN_PROGRESS run and points the latest record at it
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	pk := NewPK(input.Job, input.Env)
	now := time.Now().Unix()

	record := Record{
		PK:        pk,
		SK:        input.SK,
		Job:       input.Job,
		Env:       input.Env,
		Status:    StatusInProgress,
		Reference: input.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	put := d.table.Put(&record)
	latestPut := d.table.Put(latestRecord(pk, input.SK, record.Status, now))
	if _, err := d.db.TransactWriteItemsWithContext(ctx, put, latestPut); err != nil {
		return Record{}, fmt.Errorf("failed to create run record: %w", err)
	}

	return record, nil
}

// Finish sets the terminal status and counts of a run
func (d *DAO) Finish(ctx context.Context, input FinishInput) error {
	if input.Status != StatusSuccess && input.Status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", input.Status)
	}

	now := time.Now().Unix()

	update := d.table.Update(input.PK.String()).
		Range(input.SK).
		Set("#Status = ?", string(input.Status)).
		Set("#Orders = ?", input.Orders).
		Set("#LineItems = ?", input.LineItems).
		Set("#Inserted = ?", input.Inserted).
		Set("#Duplicates = ?", input.Duplicates).
		Set("#FinishedAt = ?", now).
		Set("#UpdatedAt = ?", now)

	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	latestPut := d.table.Put(latestRecord(input.PK, input.SK, input.Status, now))
	if _, err := d.db.TransactWriteItemsWithContext(ctx, update, latestPut); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	return nil
}

// latestRecord builds the magic record pk=latest/{env}, sk={job}/{env} pointing at the newest run
func latestRecord(pk PK, sk string, status Status, now int64) *Record {
	job, env, _ := ParsePK(pk)
	return &Record{
		PK:        PK(fmt.Sprintf("%s/%s", latest, env)),
		SK:        pk.String(),
		ID:        NewID(pk, sk),
		Job:       job,
		Env:       env,
		Status:    status,
		UpdatedAt: now,
	}
}

// Find retrieves a run by ID
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record
	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, id)
		}
		return Record{}, fmt.Errorf("failed to find run: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, id)
	}

	return record, nil
}

// List returns up to limit runs for job/env, newest first. limit <= 0 returns all.
func (d *DAO) List(ctx context.Context, job Job, env string, limit int) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", NewPK(job, env).String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	// KSUIDs sort by creation time
	sort.Slice(records, func(i, j int) bool {
		return records[i].SK > records[j].SK
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Latest returns the most recent run of every job in env
func (d *DAO) Latest(ctx context.Context, env string) ([]Record, error) {
	var pointers []Record

	err := d.table.Query("#PK = ?", fmt.Sprintf("%s/%s", latest, env)).
		FindAllWithContext(ctx, &pointers)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}

	ids := slicex.Map(pointers, func(r Record) ID { return r.GetID() })

	runs := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := d.Find(ctx, id)
		if err != nil {
			// pointer may outlive a deleted run
			continue
		}
		runs = append(runs, record)
	}

	return runs, nil
}
