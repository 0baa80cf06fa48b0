// Package config defines the validated configuration consumed by the
// evaluation engine. Configuration is loaded from a YAML file, merged
// over defaults, and validated before any component is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// ModelRef identifies one enabled model within a provider.
type ModelRef struct {
	Provider string
	Name     string
}

// ProviderConfig holds per-provider connection settings and the model
// catalog. Providers are declared as an ordered list so combination
// expansion is stable across runs of the same file.
type ProviderConfig struct {
	// Name is the registered provider identifier, e.g. "ollama".
	Name string `yaml:"name" validate:"required"`

	// Endpoint overrides the provider's default API endpoint.
	Endpoint string `yaml:"endpoint"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in configuration files.
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds a single generation call to this provider.
	Timeout time.Duration `yaml:"timeout"`

	// Models is the provider's available model catalog.
	Models []string `yaml:"models" validate:"required,min=1"`

	// EnabledModels selects which catalog models participate in the run,
	// in evaluation order. Every entry must appear in Models.
	EnabledModels []string `yaml:"enabled_models"`
}

// CacheConfig controls the Redis-backed generation response cache.
// When Redis is unreachable the cache disables itself and generation
// proceeds uncached.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// RateLimitConfig bounds the request rate to model providers.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// TruncationConfig parameterizes the truncation memory method.
type TruncationConfig struct {
	// MaxTokens caps the whitespace-token count of processed text.
	MaxTokens int `yaml:"max_tokens" validate:"min=1"`
}

// MemoryConfig groups per-method memory settings.
type MemoryConfig struct {
	Truncation TruncationConfig `yaml:"truncation"`
}

// BenchmarkConfig holds per-benchmark dataset settings.
type BenchmarkConfig struct {
	// DatasetPath points at the benchmark's task file.
	DatasetPath string `yaml:"dataset_path" validate:"required"`

	// TaskLimit caps how many tasks a job executes; zero means all.
	TaskLimit int `yaml:"task_limit" validate:"min=0"`

	// ICLExamples is the number of in-context examples prepended to
	// prompts, for benchmarks that support it.
	ICLExamples int `yaml:"icl_examples" validate:"min=0"`

	// SystemPrompt overrides the benchmark's default system prompt.
	SystemPrompt string `yaml:"system_prompt"`
}

// ExportConfig controls post-run export of persisted results.
type ExportConfig struct {
	// Format is the export serialization: "json" or "csv".
	Format string `yaml:"format" validate:"omitempty,oneof=json csv"`

	// Path is the local file the export blob is written to.
	Path string `yaml:"path"`

	// Upload, when set, pushes the export blob to an S3-compatible
	// object store after the run.
	Upload    bool   `yaml:"upload"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Config is the validated configuration structure the orchestrator
// consumes. Field order within the provider, memory method, and
// benchmark lists determines combination expansion order.
type Config struct {
	Providers     []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
	MemoryMethods []string         `yaml:"memory_methods" validate:"required,min=1"`
	Benchmarks    []string         `yaml:"benchmarks" validate:"required,min=1"`

	// Concurrency is the admission-gate bound: at most this many jobs
	// run simultaneously. 1 means fully sequential execution.
	Concurrency int `yaml:"concurrency" validate:"min=1"`

	// MaxRetries is the number of additional attempts after a job's
	// first transient failure.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// JobTimeout bounds a single job attempt; zero disables the bound.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// StorageLocation selects the results backend: a postgres:// DSN or
	// a local file path for the append-only JSONL store.
	StorageLocation string `yaml:"storage_location" validate:"required"`

	// SummaryErrorSample caps how many per-job error messages the run
	// summary retains; failures beyond the cap are counted, not sampled.
	SummaryErrorSample int `yaml:"summary_error_sample" validate:"min=0"`

	Memory           MemoryConfig               `yaml:"memory"`
	BenchmarkConfigs map[string]BenchmarkConfig `yaml:"benchmark_configs"`
	Cache            CacheConfig                `yaml:"cache"`
	RateLimit        RateLimitConfig            `yaml:"rate_limit"`
	Export           ExportConfig               `yaml:"export"`
}

// Default returns the configuration baseline applied before a file is
// merged over it.
func Default() Config {
	return Config{
		MemoryMethods:      []string{"truncation"},
		Benchmarks:         []string{"nestful"},
		Concurrency:        1,
		MaxRetries:         0,
		StorageLocation:    "results/results.jsonl",
		SummaryErrorSample: 100,
		Memory: MemoryConfig{
			Truncation: TruncationConfig{MaxTokens: 500},
		},
		Export: ExportConfig{Format: "json"},
	}
}

// Load reads, merges, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints and cross-field invariants:
// every enabled model must appear in its provider's catalog, and at
// least one model must be enabled overall.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	enabled := 0
	for _, p := range c.Providers {
		catalog := make(map[string]struct{}, len(p.Models))
		for _, m := range p.Models {
			catalog[m] = struct{}{}
		}
		for _, m := range p.EnabledModels {
			if _, ok := catalog[m]; !ok {
				return fmt.Errorf("%w: provider %q enables unknown model %q", ErrInvalidConfig, p.Name, m)
			}
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("%w: no models enabled for any provider", ErrInvalidConfig)
	}
	return nil
}

// EnabledModels flattens the provider catalog into the ordered model
// list used for combination expansion: providers in declaration order,
// models in enabled order within each provider.
func (c *Config) EnabledModels() []ModelRef {
	var refs []ModelRef
	for _, p := range c.Providers {
		for _, m := range p.EnabledModels {
			refs = append(refs, ModelRef{Provider: p.Name, Name: m})
		}
	}
	return refs
}

// Provider returns the configuration for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
