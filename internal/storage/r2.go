package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	// ErrNotConfigured is returned when no bucket is set.
	ErrNotConfigured = errors.New("object storage is not configured")
	// ErrNoPublicURL is returned when the bucket has no public base URL.
	ErrNoPublicURL = errors.New("object storage public base URL is not configured")
)

// Config points at an S3 compatible bucket (Cloudflare R2, MinIO, AWS).
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Prefix        string
}

// Enabled is true when a bucket has been configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Client pushes staged uploads to the bucket and hands back a public URL
// the inference platform can fetch.
type R2Client struct {
	client  putObjectAPI
	bucket  string
	baseURL string
	prefix  string
	now     func() time.Time
}

func NewR2Client(ctx context.Context, cfg Config) (*R2Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.PublicBaseURL == "" {
		return nil, ErrNoPublicURL
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &R2Client{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		prefix:  strings.Trim(cfg.Prefix, "/"),
		now:     time.Now,
	}, nil
}

// UploadFile streams the file at path to the bucket.
func (r *R2Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	key := r.objectKey(path)
	ct := contentTypeOf(path)

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ct),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s", r.baseURL, key), nil
}

// objectKey builds <prefix>/<yyyy/mm/dd>/<uuid><ext>.
func (r *R2Client) objectKey(path string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(path))
	key := r.now().UTC().Format("2006/01/02") + "/" + name
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}
	return key
}

var audioTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

func contentTypeOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
