// Package export archives analysis runs to S3 or an S3-compatible store (MinIO)
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mrcode/nightscout-therapy/internal/models"
)

// Config holds the export target. Credentials fall back to the default AWS chain when empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ConfigFromSettings builds an export config from the app settings
func ConfigFromSettings(s *models.Settings) Config {
	c := s.Clone()
	return Config{
		Bucket:    c.ExportBucket,
		Region:    c.ExportRegion,
		Endpoint:  c.ExportEndpoint,
		Prefix:    c.ExportPrefix,
		PathStyle: c.ExportPathStyle,
	}
}

// S3Exporter uploads run JSON and report PNGs to a bucket
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an exporter from Config
func New(ctx context.Context, cfg Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("export bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newExporter(client, cfg.Bucket, cfg.Prefix), nil
}

func newExporter(client *s3.Client, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Keys returns the object keys used for a run's JSON and PNG
func (e *S3Exporter) Keys(run *models.AnalysisRun) (jsonKey, pngKey string) {
	base := path.Join(e.prefix, run.CreatedAt.UTC().Format("2006-01-02"), run.ID)
	return base + ".json", base + ".png"
}

// Export uploads the run as JSON and, when png is non-empty, the rendered report.
// It returns the uploaded keys.
func (e *S3Exporter) Export(ctx context.Context, run *models.AnalysisRun, png []byte) ([]string, error) {
	if run == nil || run.ID == "" || run.Result == nil {
		return nil, errors.New("cannot export a run without id or result")
	}

	payload, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode run: %w", err)
	}

	jsonKey, pngKey := e.Keys(run)
	meta := map[string]string{
		"run-id":        run.ID,
		"time-in-range": fmt.Sprintf("%.0f", run.Result.Metrics.TimeInRangePct),
	}

	if err := e.put(ctx, jsonKey, "application/json", payload, meta); err != nil {
		return nil, err
	}
	keys := []string{jsonKey}

	if len(png) > 0 {
		if err := e.put(ctx, pngKey, "image/png", png, meta); err != nil {
			return keys, err
		}
		keys = append(keys, pngKey)
	}
	return keys, nil
}

func (e *S3Exporter) put(ctx context.Context, key, contentType string, body []byte, meta map[string]string) error {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &e.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
