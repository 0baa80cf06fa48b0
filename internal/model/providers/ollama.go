// Package providers implements the model.Generator contract for the
// supported model providers. Each provider handles its own wire format,
// authentication, and error classification, producing normalized
// responses for the rest of the system.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/membench/membench/internal/model"
)

// Supported provider identifiers. These constants match the provider
// names used in configuration and component registration.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultTimeout        = 120 * time.Second

	// maxErrorBody caps how much of an error response body is retained
	// in provider error messages.
	maxErrorBody = 2048
)

// Config holds provider connection settings shared by all providers.
type Config struct {
	// Endpoint overrides the provider's default API base URL.
	Endpoint string

	// APIKey is the bearer credential for providers that require one.
	APIKey string

	// Model is the model identifier within the provider's catalog.
	Model string

	// Timeout bounds a single generation call.
	Timeout time.Duration

	// HTTPClient overrides the default client, used by tests.
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Ollama generates text against a local or remote Ollama server using
// its native /api/generate endpoint.
type Ollama struct {
	cfg    Config
	client *http.Client
}

// NewOllama creates an Ollama generator. Without an endpoint it targets
// the default local server.
func NewOllama(cfg Config) *Ollama {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOllamaEndpoint
	}
	return &Ollama{cfg: cfg, client: cfg.httpClient()}
}

// Info returns the provider and model identifiers.
func (o *Ollama) Info() model.Info {
	return model.Info{Provider: ProviderOllama, Model: o.cfg.Model}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
}

// Generate calls /api/generate and normalizes the response.
func (o *Ollama) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req.Prompt == "" {
		return nil, model.ErrEmptyPrompt
	}

	body := ollamaRequest{
		Model:  o.cfg.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	}
	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if len(options) > 0 {
		body.Options = options
	}

	start := time.Now()
	data, err := postJSON(ctx, o.client, o.cfg.Endpoint+"/api/generate", nil, body, ProviderOllama)
	if err != nil {
		return nil, err
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidResponse, err)
	}
	if parsed.Response == "" {
		return nil, model.ErrEmptyResponse
	}

	return &model.Response{
		Content:      parsed.Response,
		Provider:     ProviderOllama,
		Model:        o.cfg.Model,
		FinishReason: parsed.DoneReason,
		Usage: model.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
			LatencyMs:        time.Since(start).Milliseconds(),
		},
	}, nil
}

// postJSON performs a JSON POST and returns the response body, mapping
// HTTP and transport failures to classified provider errors.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, provider string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(provider, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &model.ProviderError{
			Provider: provider,
			Message:  fmt.Sprintf("read response: %v", err),
			Type:     model.ErrorTypeNetwork,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &model.ProviderError{
			Provider:   provider,
			StatusCode: httpResp.StatusCode,
			Message:    msg,
			Type:       model.ClassifyStatus(httpResp.StatusCode),
		}
	}
	return data, nil
}

// classifyTransportError converts request-level failures into provider
// errors. Context cancellation passes through untouched so cooperative
// shutdown is not misread as a provider fault.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	errType := model.ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		errType = model.ErrorTypeTimeout
	}
	return &model.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Type:     errType,
	}
}
