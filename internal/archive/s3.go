// Package archive exports resolved markets to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"prediction-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Exporter receives every resolved market after settlement commits
type Exporter interface {
	Export(ctx context.Context, resolved *models.ResolvedMarket) error
}

// S3Config holds the connection settings for an S3-compatible store.
// Endpoint is empty for AWS; set it for MinIO, R2 and similar.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// putter is the slice of the S3 API the exporter needs
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes one JSON document per resolved market
type S3Exporter struct {
	client putter
	bucket string
}

// NewS3Exporter builds an exporter with static credentials. A custom endpoint
// switches to path-style addressing.
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Exporter{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// Export uploads the archive row to resolved/YYYY-MM/<market_id>.json
func (e *S3Exporter) Export(ctx context.Context, resolved *models.ResolvedMarket) error {
	body, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("archive: marshal market %d: %w", resolved.MarketID, err)
	}

	key := ObjectKey(resolved)
	if _, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the object path of a resolved market
func ObjectKey(resolved *models.ResolvedMarket) string {
	return fmt.Sprintf("resolved/%s/%d.json", resolved.ResolvedAt.UTC().Format("2006-01"), resolved.MarketID)
}

func normaliseEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
