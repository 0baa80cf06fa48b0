package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    JobSpec
		wantErr bool
	}{
		{
			name: "complete spec",
			spec: JobSpec{
				ModelProvider: "ollama",
				ModelName:     "llama3.1:8b",
				MemoryMethod:  "truncation",
				Benchmark:     "nestful",
			},
		},
		{
			name: "missing provider",
			spec: JobSpec{
				ModelName:    "llama3.1:8b",
				MemoryMethod: "truncation",
				Benchmark:    "nestful",
			},
			wantErr: true,
		},
		{
			name: "missing model name",
			spec: JobSpec{
				ModelProvider: "ollama",
				MemoryMethod:  "truncation",
				Benchmark:     "nestful",
			},
			wantErr: true,
		},
		{
			name: "missing memory method",
			spec: JobSpec{
				ModelProvider: "ollama",
				ModelName:     "llama3.1:8b",
				Benchmark:     "nestful",
			},
			wantErr: true,
		},
		{
			name: "missing benchmark",
			spec: JobSpec{
				ModelProvider: "ollama",
				ModelName:     "llama3.1:8b",
				MemoryMethod:  "truncation",
			},
			wantErr: true,
		},
		{
			name:    "zero value",
			spec:    JobSpec{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidJobSpec)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestJobSpecJobID(t *testing.T) {
	spec := JobSpec{
		ModelProvider: "ollama",
		ModelName:     "llama3.1:8b",
		MemoryMethod:  "truncation",
		Benchmark:     "nestful",
	}

	t.Run("deterministic within a run", func(t *testing.T) {
		assert.Equal(t, spec.JobID("run-1"), spec.JobID("run-1"))
	})

	t.Run("distinct across runs", func(t *testing.T) {
		assert.NotEqual(t, spec.JobID("run-1"), spec.JobID("run-2"))
	})

	t.Run("distinct across specs", func(t *testing.T) {
		other := spec
		other.ModelName = "qwen2.5:7b"
		assert.NotEqual(t, spec.JobID("run-1"), other.JobID("run-1"))
	})

	t.Run("field order matters", func(t *testing.T) {
		// Swapping values between fields must not produce the same
		// identifier; the digest covers each field positionally.
		swapped := JobSpec{
			ModelProvider: spec.ModelName,
			ModelName:     spec.ModelProvider,
			MemoryMethod:  spec.MemoryMethod,
			Benchmark:     spec.Benchmark,
		}
		assert.NotEqual(t, spec.JobID("run-1"), swapped.JobID("run-1"))
	})

	t.Run("stable length", func(t *testing.T) {
		assert.Len(t, spec.JobID("run-1"), jobIDLength)
	})
}

func TestJobSpecString(t *testing.T) {
	spec := JobSpec{
		ModelProvider: "ollama",
		ModelName:     "llama3.1:8b",
		MemoryMethod:  "truncation",
		Benchmark:     "nestful",
	}
	label := spec.String()
	assert.Contains(t, label, "ollama/llama3.1:8b")
	assert.Contains(t, label, "truncation")
	assert.Contains(t, label, "nestful")
}
