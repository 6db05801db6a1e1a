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

// MediaStoreConfig holds configuration for S3-compatible owned media storage
type MediaStoreConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // Optional: CDN/custom domain in front of the bucket
}

// MediaStore copies rehosted listing media into S3-compatible storage and
// resolves owned public URLs for it.
type MediaStore struct {
	client *s3.Client
	cfg    MediaStoreConfig
}

func NewMediaStore(ctx context.Context, cfg MediaStoreConfig) (*MediaStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &MediaStore{client: client, cfg: cfg}, nil
}

// Upload copies data into owned storage under the given key
func (m *MediaStore) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublicURL returns the owned URL for an uploaded key
func (m *MediaStore) PublicURL(key string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(m.cfg.PublicBaseURL, "/") + "/" + key
	}
	if m.cfg.Endpoint != "" && strings.Contains(m.cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(m.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", m.cfg.Bucket, host, key)
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.cfg.Bucket, m.cfg.Region, key)
}
