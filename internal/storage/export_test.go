package storage

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/domain"
)

func TestExportJSON(t *testing.T) {
	results := []domain.JobResult{
		newResult("run-1", "llama3.1:8b", domain.StatusSuccess),
		newResult("run-1", "qwen2.5:7b", domain.StatusError),
	}

	blob, err := Export(results, FormatJSON)
	require.NoError(t, err)

	var decoded []domain.JobResult
	require.NoError(t, json.Unmarshal(blob, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, results[0].JobID, decoded[0].JobID)
	assert.Equal(t, "provider unreachable", decoded[1].ErrorMessage)
}

func TestExportDefaultsToJSON(t *testing.T) {
	blob, err := Export(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "null", string(blob))
}

func TestExportCSV(t *testing.T) {
	r := newResult("run-1", "llama3.1:8b", domain.StatusSuccess)
	r.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.DurationSeconds = 1.25

	blob, err := Export([]domain.JobResult{r}, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(blob))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "job_id", rows[0][0])
	assert.Equal(t, r.JobID, rows[1][0])
	assert.Equal(t, "run-1", rows[1][1])
	assert.Equal(t, "llama3.1:8b", rows[1][4])
	assert.Equal(t, "success", rows[1][7])
	assert.Equal(t, "1.25", rows[1][8])
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Export(nil, "parquet")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
	assert.Equal(t, "application/json", ContentType(FormatJSON))
	assert.Equal(t, "application/json", ContentType(""))
}

func TestNewUploaderValidation(t *testing.T) {
	_, err := NewUploader(UploaderConfig{Bucket: "exports"})
	require.Error(t, err)

	_, err = NewUploader(UploaderConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)

	u, err := NewUploader(UploaderConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "exports",
	})
	require.NoError(t, err)
	assert.Equal(t, "exports", u.bucket)
}
