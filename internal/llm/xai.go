package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/xai-go"
)

// XAIAdapter serves the xai family over the xAI gRPC API.
// The client is created lazily so a bad key only fails on first use.
type XAIAdapter struct {
	apiKey    string
	opts      AdapterOptions
	maxTokens int

	clientMu sync.Mutex
	client   *xai.Client
}

// NewXAIAdapter creates an xAI adapter using apiKey.
func NewXAIAdapter(apiKey string, opts AdapterOptions) (*XAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("xai API key not configured")
	}
	return &XAIAdapter{apiKey: apiKey, opts: opts, maxTokens: opts.maxTokens()}, nil
}

func (a *XAIAdapter) getClient() (*xai.Client, error) {
	a.clientMu.Lock()
	defer a.clientMu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	cfg := xai.Config{
		APIKey: xai.NewSecureString(a.apiKey),
	}
	if a.opts.Timeout > 0 {
		cfg.Timeout = a.opts.Timeout
	}

	client, err := xai.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create xai client: %w", err)
	}
	a.client = client
	L_debug("xai client: initialized")
	return a.client, nil
}

// Ask implements Adapter.
func (a *XAIAdapter) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	client, err := a.getClient()
	if err != nil {
		return "", RequestFailed(FamilyXAI, modelID, 0, "", err)
	}

	req := xai.NewChatRequest().
		WithModel(modelID).
		WithMaxTokens(clampInt32(a.maxTokens))

	system, turns := splitSystem(messages)
	if system != "" {
		req.SystemMessage(xai.SystemContent{Text: system})
	}
	for _, m := range turns {
		if m.Role == RoleAssistant {
			req.AssistantMessage(xai.AssistantContent{Text: m.Content})
		} else {
			req.UserMessage(xai.UserContent{Text: m.Content})
		}
	}

	resp, err := client.CompleteChat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var xaiErr *xai.Error
		if errors.As(err, &xaiErr) && xaiErr.Code == xai.ErrNotFound {
			return "", RequestFailed(FamilyXAI, modelID, 404, "model not found", err)
		}
		// gRPC surfaces quota rejections as ResourceExhausted.
		if IsRateLimitMessage(err.Error()) {
			return "", RateLimited(FamilyXAI, modelID, 0, err)
		}
		return "", RequestFailed(FamilyXAI, modelID, 0, "", err)
	}

	L_trace("xai: completion", "model", modelID,
		"promptTokens", resp.Usage.PromptTokens, "completionTokens", resp.Usage.CompletionTokens)

	if resp.Content == "" {
		return "", RequestFailed(FamilyXAI, modelID, 0, "empty response", nil)
	}
	return resp.Content, nil
}

func clampInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
