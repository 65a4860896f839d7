package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECR struct {
	input  *ecr.DescribeImagesInput
	output *ecr.DescribeImagesOutput
	err    error
}

func (f *fakeECR) DescribeImages(_ context.Context, params *ecr.DescribeImagesInput, _ ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	f.input = params
	return f.output, f.err
}

func TestParseRegistry(t *testing.T) {
	tests := []struct {
		name    string
		repo    string
		want    RegistryInfo
		wantErr bool
	}{
		{
			name: "bare host",
			repo: "123456789012.dkr.ecr.us-east-1.amazonaws.com",
			want: RegistryInfo{AccountID: "123456789012", Region: "us-east-1"},
		},
		{
			name: "host with namespace",
			repo: "123456789012.dkr.ecr.us-west-2.amazonaws.com/bots/",
			want: RegistryInfo{AccountID: "123456789012", Region: "us-west-2", Namespace: "bots"},
		},
		{
			name:    "docker hub",
			repo:    "docker.io/library",
			wantErr: true,
		},
		{
			name:    "empty",
			repo:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRegistry(tt.repo)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrNotECRRegistry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryInfo_RepositoryName(t *testing.T) {
	assert.Equal(t, "orderbot-sync", RegistryInfo{}.RepositoryName("orderbot-sync"))
	assert.Equal(t, "bots/orderbot-sync", RegistryInfo{Namespace: "bots"}.RepositoryName("orderbot-sync"))
}

func TestECRService_DescribeImage(t *testing.T) {
	pushedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeECR{
		output: &ecr.DescribeImagesOutput{
			ImageDetails: []types.ImageDetail{
				{
					RepositoryName:   aws.String("orderbot-sync"),
					ImageDigest:      aws.String("sha256:abc"),
					ImageSizeInBytes: aws.Int64(1024),
					ImagePushedAt:    aws.Time(pushedAt),
				},
			},
		},
	}
	svc := NewECRServiceWithClient(client, "us-east-1")

	registry := RegistryInfo{AccountID: "123456789012", Region: "us-east-1"}
	info, err := svc.DescribeImage(context.Background(), registry, "orderbot-sync", "latest")
	require.NoError(t, err)

	assert.Equal(t, "sha256:abc", info.Digest)
	assert.Equal(t, int64(1024), info.SizeBytes)
	assert.Equal(t, pushedAt, info.PushedAt)
	assert.Equal(t, "123456789012", aws.ToString(client.input.RegistryId))
	assert.Equal(t, "latest", aws.ToString(client.input.ImageIds[0].ImageTag))
}

func TestECRService_DescribeImage_NotFound(t *testing.T) {
	client := &fakeECR{
		err: &smithy.GenericAPIError{Code: "ImageNotFoundException", Message: "no such tag"},
	}
	svc := NewECRServiceWithClient(client, "us-east-1")

	_, err := svc.DescribeImage(context.Background(), RegistryInfo{AccountID: "123456789012"}, "orderbot-sync", "latest")
	assert.True(t, errors.Is(err, apperrors.ErrImageNotFound))
}
