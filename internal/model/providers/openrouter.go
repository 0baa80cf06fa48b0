package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/membench/membench/internal/model"
)

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"

// OpenRouter generates text through OpenRouter's OpenAI-compatible
// chat/completions API.
type OpenRouter struct {
	cfg    Config
	client *http.Client
}

// NewOpenRouter creates an OpenRouter generator. The API key must be
// present in cfg; resolving it from the environment is the component
// registry's job at construction time, never at registration.
func NewOpenRouter(cfg Config) (*OpenRouter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOpenRouterEndpoint
	}
	if cfg.APIKey == "" {
		return nil, &model.ProviderError{
			Provider: ProviderOpenRouter,
			Message:  "missing API key",
			Type:     model.ErrorTypeAuth,
		}
	}
	return &OpenRouter{cfg: cfg, client: cfg.httpClient()}, nil
}

// Info returns the provider and model identifiers.
func (o *OpenRouter) Info() model.Info {
	return model.Info{Provider: ProviderOpenRouter, Model: o.cfg.Model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Generate calls /chat/completions and normalizes the response.
func (o *OpenRouter) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req.Prompt == "" {
		return nil, model.ErrEmptyPrompt
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.cfg.APIKey,
	}

	start := time.Now()
	data, err := postJSON(ctx, o.client, o.cfg.Endpoint+"/chat/completions", headers, body, ProviderOpenRouter)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, model.ErrEmptyResponse
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = o.cfg.Model
	}

	return &model.Response{
		Content:      parsed.Choices[0].Message.Content,
		Provider:     ProviderOpenRouter,
		Model:        respModel,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: model.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
			LatencyMs:        time.Since(start).Milliseconds(),
		},
	}, nil
}
