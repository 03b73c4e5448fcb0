// Package cdn uploads converted sticker assets to S3-compatible object
// storage (spec.md §4.D media source 6), grounded on
// qzbxw-EGO/backend/go-api/internal/storage.S3Service: aws-sdk-go v1 with
// S3ForcePathStyle for compatibility with non-AWS endpoints, and a "null
// service" that degrades gracefully when storage is not configured rather
// than failing construction.
package cdn

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	awsv1 "github.com/aws/aws-sdk-go/aws"
	credsv1 "github.com/aws/aws-sdk-go/aws/credentials"
	sessionv1 "github.com/aws/aws-sdk-go/aws/session"
	s3v1 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Config is the subset of config.CDN plus credentials the uploader needs.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Uploader implements parser.CDNUploader. A zero-value client (when Config
// is incomplete) degrades every Upload call to an error rather than
// panicking, so a deployment without object storage can still run with
// Lottie-sticker conversion simply unavailable.
type Uploader struct {
	client   *s3v1.S3
	bucket   string
	endpoint string
	logger   *slog.Logger
}

// New constructs an Uploader, or a null uploader if cfg is incomplete.
func New(cfg Config, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" || cfg.Region == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		logger.Warn("cdn: configuration incomplete, sticker upload is disabled")
		return &Uploader{logger: logger}, nil
	}

	sess, err := sessionv1.NewSession(&awsv1.Config{
		Region:           awsv1.String(cfg.Region),
		Endpoint:         awsv1.String(cfg.Endpoint),
		S3ForcePathStyle: awsv1.Bool(true),
		Credentials:      credsv1.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("cdn: create aws session: %w", err)
	}

	return &Uploader{client: s3v1.New(sess), bucket: cfg.Bucket, endpoint: cfg.Endpoint, logger: logger}, nil
}

func (u *Uploader) configured() bool {
	return u.client != nil && u.bucket != ""
}

// Upload stores data under a generated key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if !u.configured() {
		return "", fmt.Errorf("cdn: object storage is not configured, cannot upload %s", filename)
	}

	key := uuid.NewString() + "-" + filename
	_, err := u.client.PutObjectWithContext(ctx, &s3v1.PutObjectInput{
		Bucket: awsv1.String(u.bucket),
		Key:    awsv1.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("cdn: upload %s: %w", filename, err)
	}
	return fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, key), nil
}
