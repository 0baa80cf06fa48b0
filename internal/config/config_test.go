package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validYAML = `
providers:
  - name: ollama
    endpoint: http://localhost:11434
    timeout: 90s
    models: [llama3.1:8b, qwen2.5:7b]
    enabled_models: [llama3.1:8b]
  - name: openrouter
    api_key_env: OPENROUTER_API_KEY
    models: [anthropic/claude-3.5-sonnet]
    enabled_models: [anthropic/claude-3.5-sonnet]
memory_methods: [truncation]
benchmarks: [nestful]
concurrency: 4
max_retries: 2
job_timeout: 10m
storage_location: results/run.jsonl
benchmark_configs:
  nestful:
    dataset_path: data/nestful.jsonl
    task_limit: 25
    icl_examples: 2
`

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		cfg, err := Load(writeConfigFile(t, validYAML))
		require.NoError(t, err)

		assert.Len(t, cfg.Providers, 2)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, 2, cfg.MaxRetries)
		assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
		assert.Equal(t, "results/run.jsonl", cfg.StorageLocation)
		assert.Equal(t, 25, cfg.BenchmarkConfigs["nestful"].TaskLimit)
	})

	t.Run("defaults survive merge", func(t *testing.T) {
		cfg, err := Load(writeConfigFile(t, validYAML))
		require.NoError(t, err)

		// Fields absent from the file keep their baseline values.
		assert.Equal(t, 100, cfg.SummaryErrorSample)
		assert.Equal(t, 500, cfg.Memory.Truncation.MaxTokens)
		assert.Equal(t, "json", cfg.Export.Format)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "providers: [\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Providers = []ProviderConfig{{
			Name:          "ollama",
			Models:        []string{"llama3.1:8b"},
			EnabledModels: []string{"llama3.1:8b"},
		}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "baseline",
			mutate: func(c *Config) {},
		},
		{
			name:    "no providers",
			mutate:  func(c *Config) { c.Providers = nil },
			wantErr: true,
		},
		{
			name:    "no memory methods",
			mutate:  func(c *Config) { c.MemoryMethods = nil },
			wantErr: true,
		},
		{
			name:    "no benchmarks",
			mutate:  func(c *Config) { c.Benchmarks = nil },
			wantErr: true,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "missing storage location",
			mutate:  func(c *Config) { c.StorageLocation = "" },
			wantErr: true,
		},
		{
			name: "enabled model outside catalog",
			mutate: func(c *Config) {
				c.Providers[0].EnabledModels = []string{"unknown:model"}
			},
			wantErr: true,
		},
		{
			name: "no models enabled anywhere",
			mutate: func(c *Config) {
				c.Providers[0].EnabledModels = nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEnabledModels(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	refs := cfg.EnabledModels()
	require.Len(t, refs, 2)

	// Declaration order is preserved: providers first, then models
	// within each provider.
	assert.Equal(t, ModelRef{Provider: "ollama", Name: "llama3.1:8b"}, refs[0])
	assert.Equal(t, ModelRef{Provider: "openrouter", Name: "anthropic/claude-3.5-sonnet"}, refs[1])
}

func TestProviderLookup(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	pc, ok := cfg.Provider("openrouter")
	require.True(t, ok)
	assert.Equal(t, "OPENROUTER_API_KEY", pc.APIKeyEnv)

	_, ok = cfg.Provider("missing")
	assert.False(t, ok)
}
