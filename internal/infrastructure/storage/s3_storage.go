// Package storage provides the sinks that csv and feed exports are written to.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
)

// Secret names for static S3 credentials. When absent the default AWS
// credential chain is used (env, shared config, instance role).
const (
	S3AccessKeySecret = "s3_access_key_id"
	S3SecretKeySecret = "s3_secret_access_key"
)

var _ marketplace.FileSink = (*S3Sink)(nil)

// S3Sink writes export files to an S3-compatible bucket (AWS S3, MinIO, etc.)
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3SinkOption is a functional option for configuring S3Sink
type S3SinkOption func(*S3Sink)

// WithLogger sets a custom logger for S3Sink
func WithLogger(logger *zap.Logger) S3SinkOption {
	return func(s *S3Sink) {
		s.logger = logger
	}
}

// NewS3Sink creates an S3Sink from configuration. Static credentials are
// read from secrets when both keys are present.
func NewS3Sink(ctx context.Context, cfg *config.StorageConfig, secrets listing.SecretStore, opts ...S3SinkOption) (*S3Sink, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	provider, err := staticCredentials(ctx, secrets)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		// S3-compatible stores often reject the SDK's default trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	sink := &S3Sink{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.S3Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

func staticCredentials(ctx context.Context, secrets listing.SecretStore) (aws.CredentialsProvider, error) {
	if secrets == nil {
		return nil, nil
	}
	access, err := secrets.GetSecret(ctx, S3AccessKeySecret)
	if errors.Is(err, listing.ErrSecretNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read s3 access key: %w", err)
	}
	secret, err := secrets.GetSecret(ctx, S3SecretKeySecret)
	if err != nil {
		return nil, fmt.Errorf("read s3 secret key: %w", err)
	}
	return credentials.NewStaticCredentialsProvider(access.Reveal(), secret.Reveal(), ""), nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3Sink) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating export bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Write uploads data under prefix/key and returns its s3:// location
func (s *S3Sink) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	objectKey := key
	if s.prefix != "" {
		objectKey = path.Join(s.prefix, key)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	s.logger.Debug("export uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(data)),
	)
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

// Bucket returns the bucket name
func (s *S3Sink) Bucket() string {
	return s.bucket
}
