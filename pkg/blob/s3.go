package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Store keeps blobs in an S3 compatible bucket
type S3Store struct {
	client  S3API
	bucket  string
	metrics *observability.Metrics
}

// NewS3Store builds an S3 client from cfg and ensures the bucket exists. Static
// credentials are used when both keys are set, otherwise the default chain.
func NewS3Store(ctx context.Context, cfg config.S3Config, metrics *observability.Metrics) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := NewS3StoreWithClient(client, cfg.Bucket, metrics)
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client S3API, bucket string, metrics *observability.Metrics) *S3Store {
	return &S3Store{client: client, bucket: bucket, metrics: metrics}
}

// Put uploads content under key with a sha256 checksum in the object metadata
func (s *S3Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (err error) {
	ctx, span := s.startSpan(ctx, "PutObject", key)
	defer func() { s.finish(span, "put", err) }()

	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	span.SetAttributes(
		attribute.Int("content.size", len(data)),
		attribute.String("content.type", contentType),
	)

	sum := sha256.Sum256(data)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3: %w", err)
	}
	return nil
}

// Get streams the object stored under key
func (s *S3Store) Get(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	ctx, span := s.startSpan(ctx, "GetObject", key)
	defer func() { s.finish(span, "get", err) }()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}
	if out.ContentLength != nil {
		span.SetAttributes(attribute.Int64("content.size", *out.ContentLength))
	}
	return out.Body, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteObject", key)
	defer func() { s.finish(span, "delete", err) }()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable
func (s *S3Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// ensureBucket creates the bucket for local MinIO setups
func (s *S3Store) ensureBucket(ctx context.Context) error {
	if err := s.HealthCheck(ctx); err == nil {
		return nil
	}

	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *S3Store) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, "S3."+operation,
		trace.WithAttributes(
			attribute.String("s3.operation", operation),
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
}

func (s *S3Store) finish(span trace.Span, operation string, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	s.metrics.ObserveBlob(operation, err)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
