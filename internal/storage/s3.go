package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// videoContentType is stored on every pushed object so browsers play it inline.
const videoContentType = "video/mp4"

// S3Config selects the bucket rendered videos are pushed to.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint points at an S3-compatible service (MinIO, LocalStack).
	// Objects are then addressed path-style.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Storage keeps per-job scratch directories on local disk and pushes
// finished renders to a bucket.
type S3Storage struct {
	*LocalStorage
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewS3Storage creates scratch storage rooted at tempDir that uploads to the
// bucket in cfg. Without static keys the default AWS credential chain applies.
func NewS3Storage(tempDir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		endpoint:     endpoint,
	}, nil
}

// UploadToS3 stores a rendered video under key and returns its URL.
func (s *S3Storage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(videoContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", key, s.bucket, err)
	}
	return s.objectURL(key), nil
}

// objectURL is virtual-hosted on AWS and path-style on a custom endpoint.
func (s *S3Storage) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3Storage) S3Enabled() bool {
	return true
}

var _ Storage = (*S3Storage)(nil)
