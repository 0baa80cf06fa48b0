// Command membench runs memory-constraint evaluations across every
// configured (model, memory method, benchmark) combination and persists
// each result as it completes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/benchmark/mcpbench"
	"github.com/membench/membench/internal/benchmark/nestful"
	"github.com/membench/membench/internal/config"
	"github.com/membench/membench/internal/memory"
	"github.com/membench/membench/internal/model"
	"github.com/membench/membench/internal/model/providers"
	"github.com/membench/membench/internal/orchestrator"
	"github.com/membench/membench/internal/registry"
	"github.com/membench/membench/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.yaml", "path to the evaluation configuration file")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration rejected", "path", *configPath, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.StorageLocation)
	if err != nil {
		logger.Error("storage rejected", "location", cfg.StorageLocation, "error", err)
		return 1
	}
	defer store.Close()

	components := buildComponents(ctx, cfg, logger)
	orch := orchestrator.New(cfg, components, store, logger)

	summary, err := orch.Run(ctx)
	if err != nil {
		logger.Error("run aborted", "error", err)
		return 1
	}

	for _, je := range summary.Errors {
		logger.Warn("failed job", "job_id", je.JobID, "spec", je.Spec, "error", je.Message)
	}
	if summary.ErrorsOmitted > 0 {
		logger.Warn("additional failures not sampled", "count", summary.ErrorsOmitted)
	}

	if err := exportResults(ctx, cfg, store, orch.RunID(), logger); err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}

	if agg, err := store.Summarize(ctx); err == nil {
		logger.Info("store totals",
			"rows", agg.TotalRuns,
			"success_rate", agg.SuccessRate(),
			"models", agg.Models,
			"memory_methods", agg.MemoryMethods,
			"benchmarks", agg.Benchmarks)
	}

	if summary.Failed > 0 {
		return 1
	}
	return 0
}

// buildComponents assembles the explicit registries from configuration.
// Providers declared in the configuration but not supported register a
// failing constructor, so affected jobs fail individually instead of
// aborting the run.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) orchestrator.Components {
	var middlewares []model.Middleware
	middlewares = append(middlewares, model.NewLoggingMiddleware(logger))
	if cfg.RateLimit.Enabled {
		middlewares = append(middlewares,
			model.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	if cfg.Cache.Enabled {
		middlewares = append(middlewares, model.NewCacheMiddleware(ctx, model.CacheOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		}, nil))
	}
	wrap := func(g model.Generator) model.Generator {
		return model.Chain(g, middlewares...)
	}

	models := registry.New[model.Generator](registry.KindModel)
	for _, pc := range cfg.Providers {
		pc := pc
		switch pc.Name {
		case providers.ProviderOllama:
			models.Register(pc.Name, func(params registry.Params) (model.Generator, error) {
				return wrap(providers.NewOllama(providers.Config{
					Endpoint: pc.Endpoint,
					Model:    params.String("model"),
					Timeout:  pc.Timeout,
				})), nil
			})
		case providers.ProviderOpenRouter:
			models.Register(pc.Name, func(params registry.Params) (model.Generator, error) {
				keyEnv := pc.APIKeyEnv
				if keyEnv == "" {
					keyEnv = "OPENROUTER_API_KEY"
				}
				g, err := providers.NewOpenRouter(providers.Config{
					Endpoint: pc.Endpoint,
					APIKey:   os.Getenv(keyEnv),
					Model:    params.String("model"),
					Timeout:  pc.Timeout,
				})
				if err != nil {
					return nil, err
				}
				return wrap(g), nil
			})
		default:
			name := pc.Name
			models.Register(name, func(registry.Params) (model.Generator, error) {
				return nil, fmt.Errorf("provider %q has no implementation", name)
			})
		}
	}

	memories := registry.New[memory.Method](registry.KindMemory)
	memories.Register(memory.MethodTruncation, func(params registry.Params) (memory.Method, error) {
		return memory.NewTruncation(params.Int("max_tokens", cfg.Memory.Truncation.MaxTokens)), nil
	})

	benchmarks := registry.New[benchmark.TaskAdapter](registry.KindBenchmark)
	benchmarks.Register(nestful.Name, func(registry.Params) (benchmark.TaskAdapter, error) {
		bc := cfg.BenchmarkConfigs[nestful.Name]
		return nestful.New(nestful.Config{
			DatasetPath:  bc.DatasetPath,
			TaskLimit:    bc.TaskLimit,
			ICLExamples:  bc.ICLExamples,
			SystemPrompt: bc.SystemPrompt,
		}), nil
	})
	benchmarks.Register(mcpbench.Name, func(registry.Params) (benchmark.TaskAdapter, error) {
		bc := cfg.BenchmarkConfigs[mcpbench.Name]
		return mcpbench.New(mcpbench.Config{
			DatasetPath:  bc.DatasetPath,
			TaskLimit:    bc.TaskLimit,
			SystemPrompt: bc.SystemPrompt,
		}), nil
	})

	return orchestrator.Components{
		Models:     models,
		Memory:     memories,
		Benchmarks: benchmarks,
	}
}

// exportResults serializes this run's persisted rows when an export
// destination is configured, and optionally uploads the blob to the
// object store.
func exportResults(ctx context.Context, cfg *config.Config, store storage.Store, runID string, logger *slog.Logger) error {
	if cfg.Export.Path == "" && !cfg.Export.Upload {
		return nil
	}

	results, err := store.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		return fmt.Errorf("query run results: %w", err)
	}
	blob, err := storage.Export(results, cfg.Export.Format)
	if err != nil {
		return err
	}

	if cfg.Export.Path != "" {
		if err := os.WriteFile(cfg.Export.Path, blob, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		logger.Info("export written", "path", cfg.Export.Path, "rows", len(results))
	}

	if cfg.Export.Upload {
		uploader, err := storage.NewUploader(storage.UploaderConfig{
			Endpoint:  cfg.Export.Endpoint,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			UseSSL:    cfg.Export.UseSSL,
			Bucket:    cfg.Export.Bucket,
		})
		if err != nil {
			return err
		}
		key := fmt.Sprintf("runs/%s/%s-results.%s",
			time.Now().UTC().Format("2006/01"), runID, cfg.Export.Format)
		if err := uploader.Upload(ctx, key, blob, storage.ContentType(cfg.Export.Format)); err != nil {
			return err
		}
		logger.Info("export uploaded", "bucket", cfg.Export.Bucket, "key", key)
	}
	return nil
}
