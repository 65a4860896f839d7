package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
)

// {account}.dkr.ecr.{region}.amazonaws.com, optionally with a .cn suffix
var ecrHostPattern = regexp.MustCompile(`^(\d{12})\.dkr\.ecr(?:-fips)?\.([a-z0-9-]+)\.amazonaws\.com(?:\.cn)?$`)

// RegistryInfo describes an ECR registry prefix such as
// 123456789012.dkr.ecr.us-east-1.amazonaws.com/team
type RegistryInfo struct {
	AccountID string
	Region    string
	Namespace string // path after the host, may be empty
}

// RepositoryName returns the ECR repository name for image within this registry prefix.
func (r RegistryInfo) RepositoryName(image string) string {
	if r.Namespace == "" {
		return image
	}
	return r.Namespace + "/" + image
}

// ParseRegistry splits an AWS_ECR_REPO value into account, region and namespace.
// Returns ErrNotECRRegistry for hosts that are not ECR.
func ParseRegistry(repo string) (RegistryInfo, error) {
	host, namespace, _ := strings.Cut(repo, "/")
	matches := ecrHostPattern.FindStringSubmatch(host)
	if matches == nil {
		return RegistryInfo{}, fmt.Errorf("%w: %q", apperrors.ErrNotECRRegistry, repo)
	}

	return RegistryInfo{
		AccountID: matches[1],
		Region:    matches[2],
		Namespace: strings.Trim(namespace, "/"),
	}, nil
}

// ECRAPI is the subset of the ECR client used by ECRService
type ECRAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

type ECRService struct {
	client ECRAPI
	region string
}

func NewECRService(ctx context.Context, region string) (*ECRService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewECRServiceWithClient(ecr.NewFromConfig(cfg), region), nil
}

func NewECRServiceWithClient(client ECRAPI, region string) *ECRService {
	return &ECRService{
		client: client,
		region: region,
	}
}

type ImageInfo struct {
	Repository string
	Tag        string
	Digest     string
	SizeBytes  int64
	PushedAt   time.Time
}

// DescribeImage looks up a single tag in a repository
func (s *ECRService) DescribeImage(ctx context.Context, registry RegistryInfo, repositoryName, tag string) (*ImageInfo, error) {
	output, err := s.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RegistryId:     aws.String(registry.AccountID),
		RepositoryName: aws.String(repositoryName),
		ImageIds: []types.ImageIdentifier{
			{ImageTag: aws.String(tag)},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ImageNotFoundException", "RepositoryNotFoundException":
				return nil, fmt.Errorf("%w: %s:%s (%s)", apperrors.ErrImageNotFound, repositoryName, tag, apiErr.ErrorCode())
			}
		}
		return nil, fmt.Errorf("failed to describe image %s:%s: %w", repositoryName, tag, err)
	}

	if len(output.ImageDetails) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", apperrors.ErrImageNotFound, repositoryName, tag)
	}

	detail := output.ImageDetails[0]
	return &ImageInfo{
		Repository: aws.ToString(detail.RepositoryName),
		Tag:        tag,
		Digest:     aws.ToString(detail.ImageDigest),
		SizeBytes:  aws.ToInt64(detail.ImageSizeInBytes),
		PushedAt:   aws.ToTime(detail.ImagePushedAt),
	}, nil
}
