package rundao

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
)

func TestParsePK(t *testing.T) {
	tests := []struct {
		name    string
		pk      PK
		wantJob Job
		wantEnv string
		wantErr bool
	}{
		{
			name:    "sync",
			pk:      NewPK(JobSync, "prd"),
			wantJob: JobSync,
			wantEnv: "prd",
		},
		{
			name:    "publish",
			pk:      PK("publish/dev"),
			wantJob: JobPublish,
			wantEnv: "dev",
		},
		{
			name:    "no slash",
			pk:      PK("sync"),
			wantErr: true,
		},
		{
			name:    "too many slashes",
			pk:      PK("sync/prd/extra"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, env, err := ParsePK(tt.pk)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantJob, job)
			assert.Equal(t, tt.wantEnv, env)
		})
	}
}

func TestParseID(t *testing.T) {
	pk, sk, err := ParseID(NewID(NewPK(JobSync, "prd"), "2HFj3kLmNoPqRsTuVwXy"))
	assert.NoError(t, err)
	assert.Equal(t, PK("sync/prd"), pk)
	assert.Equal(t, "2HFj3kLmNoPqRsTuVwXy", sk)

	_, _, err = ParseID("sync/prd")
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "orderbot-sync-prd-runs", TableName("prd"))
}

func TestLatestRecord(t *testing.T) {
	record := latestRecord(NewPK(JobPublish, "dev"), "abc", StatusSuccess, 42)
	assert.Equal(t, PK("latest/dev"), record.PK)
	assert.Equal(t, "publish/dev", record.SK)
	assert.Equal(t, ID("publish/dev:abc"), record.GetID())
	assert.Equal(t, JobPublish, record.Job)
}

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("runs-test-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = New(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Create_Finish_Find", func(t *testing.T) {
			sk := ksuid.New().String()
			record, err := dao.Create(ctx, CreateInput{
				Job:       JobPublish,
				Env:       "create-env",
				SK:        sk,
				Reference: "123456789012.dkr.ecr.us-east-1.amazonaws.com/orderbot-sync:latest",
			})
			assert.NoError(t, err)
			assert.Equal(t, StatusInProgress, record.Status)

			err = dao.Finish(ctx, FinishInput{
				PK:     record.PK,
				SK:     record.SK,
				Status: StatusSuccess,
			})
			assert.NoError(t, err)

			found, err := dao.Find(ctx, record.GetID())
			assert.NoError(t, err)
			assert.Equal(t, StatusSuccess, found.Status)
			assert.Equal(t, record.Reference, found.Reference)
			assert.NotNil(t, found.FinishedAt)
		})

		t.Run("Finish_RecordsCountsAndError", func(t *testing.T) {
			record, err := dao.Create(ctx, CreateInput{Job: JobSync, Env: "counts-env", SK: ksuid.New().String()})
			assert.NoError(t, err)

			msg := "squarespace returned 500"
			err = dao.Finish(ctx, FinishInput{
				PK:         record.PK,
				SK:         record.SK,
				Status:     StatusFailed,
				ErrorMsg:   &msg,
				Orders:     3,
				LineItems:  5,
				Inserted:   4,
				Duplicates: 1,
			})
			assert.NoError(t, err)

			found, err := dao.Find(ctx, record.GetID())
			assert.NoError(t, err)
			assert.Equal(t, StatusFailed, found.Status)
			assert.Equal(t, 5, found.LineItems)
			assert.Equal(t, 1, found.Duplicates)
			if assert.NotNil(t, found.ErrorMsg) {
				assert.Equal(t, msg, *found.ErrorMsg)
			}
		})

		t.Run("Finish_RejectsNonTerminalStatus", func(t *testing.T) {
			err := dao.Finish(ctx, FinishInput{PK: NewPK(JobSync, "x"), SK: "y", Status: StatusInProgress})
			assert.Error(t, err)
		})

		t.Run("Find_NotFound", func(t *testing.T) {
			_, err := dao.Find(ctx, NewID(NewPK(JobSync, "missing-env"), ksuid.New().String()))
			assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
		})

		t.Run("List_NewestFirst", func(t *testing.T) {
			var sks []string
			for i := 0; i < 3; i++ {
				sk := ksuid.New().String()
				sks = append(sks, sk)
				_, err := dao.Create(ctx, CreateInput{Job: JobSync, Env: "list-env", SK: sk})
				assert.NoError(t, err)
			}

			runs, err := dao.List(ctx, JobSync, "list-env", 2)
			assert.NoError(t, err)
			assert.Len(t, runs, 2)
			assert.Equal(t, sks[2], runs[0].SK)
			assert.Equal(t, sks[1], runs[1].SK)
		})

		t.Run("Latest_PerJob", func(t *testing.T) {
			_, err := dao.Create(ctx, CreateInput{Job: JobSync, Env: "latest-env", SK: ksuid.New().String()})
			assert.NoError(t, err)
			newest, err := dao.Create(ctx, CreateInput{Job: JobSync, Env: "latest-env", SK: ksuid.New().String()})
			assert.NoError(t, err)
			publish, err := dao.Create(ctx, CreateInput{Job: JobPublish, Env: "latest-env", SK: ksuid.New().String()})
			assert.NoError(t, err)

			runs, err := dao.Latest(ctx, "latest-env")
			assert.NoError(t, err)
			assert.Len(t, runs, 2)

			ids := map[ID]bool{}
			for _, run := range runs {
				ids[run.GetID()] = true
			}
			assert.True(t, ids[newest.GetID()])
			assert.True(t, ids[publish.GetID()])
		})
	})
}
