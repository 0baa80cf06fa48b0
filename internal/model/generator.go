// Package model defines the text-generation capability consumed by
// benchmark adapters, together with composable middleware for logging,
// rate limiting, and response caching. Provider implementations live in
// the providers subpackage.
package model

import "context"

// Request is a normalized generation request, independent of any
// provider's wire format.
type Request struct {
	// Prompt is the user prompt, already processed by the job's memory
	// method before it reaches the generator.
	Prompt string `json:"prompt"`

	// System is an optional system prompt.
	System string `json:"system,omitempty"`

	// MaxTokens caps the completion length; zero lets the provider decide.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling; providers apply their own default
	// when zero.
	Temperature float64 `json:"temperature,omitempty"`

	// TraceID correlates the request across middleware and logs.
	TraceID string `json:"trace_id,omitempty"`
}

// Usage reports token accounting for one generation call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is a normalized generation response.
type Response struct {
	Content      string `json:"content"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`

	// FromCache marks responses served by the cache middleware.
	FromCache bool `json:"from_cache,omitempty"`
}

// Info identifies a generator for logs and result payloads.
type Info struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Generator is the opaque generate capability. Implementations must be
// safe for concurrent use by multiple jobs.
type Generator interface {
	// Generate produces a completion for the request. Any fault is
	// returned as an error; callers treat it as a job-level failure.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Info returns the provider and model behind this generator.
	Info() Info
}

// Middleware wraps a Generator with additional behavior. Middleware is
// applied in reverse order so the first middleware is outermost.
type Middleware func(Generator) Generator

// Chain composes middleware around a core generator.
func Chain(g Generator, middlewares ...Middleware) Generator {
	for i := len(middlewares) - 1; i >= 0; i-- {
		g = middlewares[i](g)
	}
	return g
}
