package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIAdapter talks to any OpenAI-compatible chat completions endpoint.
// The groq and openai families both use it.
type OpenAIAdapter struct {
	family      string
	client      *openai.Client
	temperature float32
	maxTokens   int
}

// NewOpenAIAdapter creates an adapter for family using apiKey.
func NewOpenAIAdapter(family, apiKey string, opts AdapterOptions) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key not configured", family)
	}

	config := openai.DefaultConfig(apiKey)
	if url := opts.baseURL(family); url != "" {
		config.BaseURL = strings.TrimSuffix(url, "/")
	}
	config.HTTPClient = opts.httpClient()

	return &OpenAIAdapter{
		family:      family,
		client:      openai.NewClientWithConfig(config),
		temperature: opts.temperature(),
		maxTokens:   opts.maxTokens(),
	}, nil
}

// Ask implements Adapter.
func (a *OpenAIAdapter) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:               modelID,
		Messages:            toOpenAIMessages(messages),
		MaxCompletionTokens: a.maxTokens,
		Temperature:         a.temperature,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", a.classify(ctx, modelID, err)
	}
	if len(resp.Choices) == 0 {
		return "", RequestFailed(a.family, modelID, 0, "empty response: no choices", nil)
	}

	L_trace("openai: completion", "family", a.family, "model", modelID,
		"promptTokens", resp.Usage.PromptTokens, "completionTokens", resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		return "", RequestFailed(a.family, modelID, 0, "empty response: finish reason "+stopReason(string(choice.FinishReason)), nil)
	}
	return choice.Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// classify maps go-openai errors onto AdapterError. Groq reports quota
// rejections as HTTP 429 with code "rate_limit_exceeded".
func (a *OpenAIAdapter) classify(ctx context.Context, modelID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || code == "rate_limit_exceeded" ||
			IsRateLimitMessage(apiErr.Message) {
			return RateLimited(a.family, modelID, apiErr.HTTPStatusCode, err)
		}
		return RequestFailed(a.family, modelID, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return RateLimited(a.family, modelID, reqErr.HTTPStatusCode, err)
		}
		return RequestFailed(a.family, modelID, reqErr.HTTPStatusCode, "", err)
	}

	if IsRateLimitMessage(err.Error()) {
		return RateLimited(a.family, modelID, 0, err)
	}
	return RequestFailed(a.family, modelID, 0, "", err)
}
