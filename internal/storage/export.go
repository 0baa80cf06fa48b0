package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/membench/membench/internal/domain"
)

// Export serialization formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat indicates an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Export serializes results for external analysis. It sits off the
// orchestration hot path; callers query the store first and export the
// returned rows.
func Export(results []domain.JobResult, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export json: %w", err)
		}
		return data, nil
	case FormatCSV:
		return exportCSV(results)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

func exportCSV(results []domain.JobResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"job_id", "run_id", "timestamp", "model_provider", "model_name",
		"memory_method", "benchmark", "status", "duration_seconds",
		"retries", "error_message",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.JobID,
			r.RunID,
			r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			r.Spec.ModelProvider,
			r.Spec.ModelName,
			r.Spec.MemoryMethod,
			r.Spec.Benchmark,
			string(r.Status),
			strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
			strconv.Itoa(r.Retries),
			r.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("export csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	return buf.Bytes(), nil
}

// UploaderConfig configures the S3-compatible export sink.
type UploaderConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Uploader pushes export blobs to an S3-compatible object store so
// analysis tooling can read runs without access to the machine that
// produced them.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader creates an export uploader.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("uploader endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("uploader bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores the blob under key, creating the bucket on first use.
func (u *Uploader) Upload(ctx context.Context, key string, blob []byte, contentType string) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", u.bucket, err)
		}
	}
	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(blob), int64(len(blob)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %q: %w", key, err)
	}
	return nil
}
