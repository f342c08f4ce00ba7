package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// AnthropicAdapter serves the anthropic family via the Messages API.
type AnthropicAdapter struct {
	client      *anthropic.Client
	temperature float64
	maxTokens   int64
}

// NewAnthropicAdapter creates an Anthropic adapter using apiKey.
// SDK retries are disabled; the router owns failover.
func NewAnthropicAdapter(apiKey string, opts AdapterOptions) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(0),
	}
	if url := opts.baseURL(FamilyAnthropic); url != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(url))
	}
	client := anthropic.NewClient(reqOpts...)

	return &AnthropicAdapter{
		client:      &client,
		temperature: float64(opts.temperature()),
		maxTokens:   int64(opts.maxTokens()),
	}, nil
}

// Ask implements Adapter.
func (a *AnthropicAdapter) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	system, turns := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   a.maxTokens,
		Messages:    toAnthropicMessages(turns),
		Temperature: anthropic.Float(a.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", a.classify(ctx, modelID, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	L_trace("anthropic: completion", "model", modelID,
		"inputTokens", msg.Usage.InputTokens, "outputTokens", msg.Usage.OutputTokens)

	if text.Len() == 0 {
		return "", RequestFailed(FamilyAnthropic, modelID, 0, "empty response: stop reason "+stopReason(string(msg.StopReason)), nil)
	}
	return text.String(), nil
}

func stopReason(r string) string {
	if r == "" {
		return "unknown"
	}
	return r
}

func toAnthropicMessages(turns []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func (a *AnthropicAdapter) classify(ctx context.Context, modelID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return RateLimited(FamilyAnthropic, modelID, apiErr.StatusCode, err)
		}
		return RequestFailed(FamilyAnthropic, modelID, apiErr.StatusCode, "", err)
	}

	if IsRateLimitMessage(err.Error()) {
		return RateLimited(FamilyAnthropic, modelID, 0, err)
	}
	return RequestFailed(FamilyAnthropic, modelID, 0, "", err)
}
