// Package stage uploads generated files to S3 so a warehouse can COPY them
// from an external stage.
package stage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/snowplow-loadgen/internal/pkg/logger"
)

// API is the subset of the S3 client the uploader needs.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config contains configuration for S3 staging
type Config struct {
	Bucket       string
	Prefix       string // e.g. "snowplow/loads/"
	Region       string
	Profile      string // Empty string uses default credential chain
	AccessKey    string
	SecretKey    string
	Endpoint     string // S3-compatible endpoint such as MinIO
	UsePathStyle bool
}

// S3Stage uploads files under a bucket prefix.
type S3Stage struct {
	client API
	bucket string
	prefix string
}

// NewS3Stage builds an S3 client from the default AWS config chain, with
// static credentials and a custom endpoint when configured.
func NewS3Stage(ctx context.Context, cfg Config) (*S3Stage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("stage: s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
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

	logger.Info("S3 stage initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return NewS3StageWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StageWithClient wraps an existing client.
func NewS3StageWithClient(client API, bucket, prefix string) *S3Stage {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Stage{client: client, bucket: bucket, prefix: prefix}
}

// URL is the s3:// location of the prefix, as an external stage expects it.
func (s *S3Stage) URL() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// Key returns the object key a local file is uploaded to.
func (s *S3Stage) Key(file string) string {
	return path.Join(s.prefix, filepath.Base(file))
}

// Upload puts a local file under the prefix and returns its key.
func (s *S3Stage) Upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", file, err)
	}

	key := s.Key(file)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", file, s.bucket, key, err)
	}
	logger.Info("Uploaded file to stage", "file", filepath.Base(file), "bytes", info.Size(), "key", key)
	return key, nil
}

// Delete removes an uploaded object.
func (s *S3Stage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
