package model

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// loggingGenerator wraps a generator with structured request lifecycle
// logging. Prompts are never logged; only sizes, latency, and token
// usage appear in log output.
type loggingGenerator struct {
	next   Generator
	logger *slog.Logger
}

// NewLoggingMiddleware returns middleware that logs each generation
// call's start, completion, latency, and usage. A nil logger falls back
// to slog.Default.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "generator")
	return func(next Generator) Generator {
		return &loggingGenerator{next: next, logger: logger}
	}
}

func (g *loggingGenerator) Info() Info { return g.next.Info() }

func (g *loggingGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
		req.TraceID = traceID
	}

	info := g.next.Info()
	g.logger.Debug("generation started",
		"trace_id", traceID,
		"provider", info.Provider,
		"model", info.Model,
		"prompt_chars", len(req.Prompt))

	start := time.Now()
	resp, err := g.next.Generate(ctx, req)
	latency := time.Since(start)

	if err != nil {
		g.logger.Warn("generation failed",
			"trace_id", traceID,
			"provider", info.Provider,
			"model", info.Model,
			"latency_ms", latency.Milliseconds(),
			"error", err)
		return nil, err
	}

	g.logger.Debug("generation completed",
		"trace_id", traceID,
		"provider", info.Provider,
		"model", info.Model,
		"latency_ms", latency.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"from_cache", resp.FromCache)
	return resp, nil
}
