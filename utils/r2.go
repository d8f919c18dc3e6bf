// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ScreenshotStore persists trend screenshots and returns their public URL.
type ScreenshotStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type R2Config struct {
	AccountID   string
	Endpoint    string // overrides the account endpoint (MinIO, S3)
	AccessKeyID string
	SecretKey   string
	Bucket      string
	CDNBaseURL  string
}

// R2Store uploads to Cloudflare R2 or any S3-compatible bucket.
type R2Store struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Store(ctx context.Context, rc R2Config) (*R2Store, error) {
	endpoint := rc.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", rc.AccountID)
	}
	cdn := rc.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + rc.Bucket
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			rc.AccessKeyID, rc.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		client:     client,
		bucket:     rc.Bucket,
		cdnBaseURL: strings.TrimRight(cdn, "/"),
	}, nil
}

func (s *R2Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", s.cdnBaseURL, key), nil
}
