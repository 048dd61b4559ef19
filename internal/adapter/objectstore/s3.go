package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/goldmanhw/storefront/pkg/retry"
)

var _ port.ImageStorage = (*S3Images)(nil)

var ErrForeignURL = errors.New("url does not belong to the bucket")

const (
	putAttempts = 3
	putDelay    = 200 * time.Millisecond
)

type s3API interface {
	PutObject(
		ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
	DeleteObject(
		ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
}

// S3Config used for setup [S3Images]. Endpoint is set for S3
// compatible stores (MinIO, R2) and switches to path style addressing.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	BaseURL   string
}

// S3Images keeps catalog images in one bucket and serves them from
// BaseURL.
type S3Images struct {
	client  s3API
	bucket  string
	baseURL string
}

func NewS3Images(ctx context.Context, config S3Config) (*S3Images, error) {
	const op = "NewS3Images"

	if config.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is not configured", op)
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(config.Region),
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				config.AccessKey, config.SecretKey, "",
			),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: load config: %w", op, err)
	}

	var clientOpts []func(*s3.Options)
	if config.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		})
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf(
			"https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region,
		)
	}

	return newS3Images(s3.NewFromConfig(cfg, clientOpts...), config.Bucket, baseURL), nil
}

func newS3Images(client s3API, bucket, baseURL string) *S3Images {
	return &S3Images{client: client, bucket: bucket, baseURL: baseURL}
}

func (s *S3Images) PutImage(
	ctx context.Context, key, contentType string, data []byte,
) (string, error) {
	const op = "S3Images.PutImage"

	key = strings.TrimLeft(key, "/")
	err := retry.Do(ctx, retry.RetryConfig{
		MaxAttempts: putAttempts,
		Backoff:     retry.ExponentialBackoff(putDelay),
	}, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(s.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(data),
			ContentType:  aws.String(contentType),
			CacheControl: aws.String("public, max-age=31536000"),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: put %s: %w", op, key, err)
	}

	slog.Debug("image stored", "op", op, "key", key, "size", len(data))
	return s.url(key), nil
}

// DeleteImage removes the object url points to. Only urls built by
// PutImage are accepted.
func (s *S3Images) DeleteImage(ctx context.Context, url string) error {
	const op = "S3Images.DeleteImage"

	key, ok := s.key(url)
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrForeignURL, url)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: delete %s: %w", op, key, err)
	}
	return nil
}

func (s *S3Images) url(key string) string {
	return s.baseURL + "/" + key
}

func (s *S3Images) key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
