package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/seenimoa/fnopart/internal/config"
)

// Sink stores archive objects by key. Keys use forward slashes.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Name() string
}

// LocalSink writes objects under a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Name identifies the sink in logs.
func (s *LocalSink) Name() string { return "local:" + s.dir }

// Put writes data to dir/key, creating parent directories.
func (s *LocalSink) Put(_ context.Context, key string, data []byte, _ string) error {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// S3Sink uploads objects to a bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
}

// NewS3Sink builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Sink(ctx context.Context, cfg config.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &S3Sink{client: client, bucket: cfg.Bucket}, nil
}

// Name identifies the sink in logs.
func (s *S3Sink) Name() string { return "s3:" + s.bucket }

// Put uploads one object.
func (s *S3Sink) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"producer": "fnopart",
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
