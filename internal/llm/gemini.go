package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"google.golang.org/genai"
)

// GeminiAdapter serves the google family through the Gemini API.
// System messages become the system instruction and the assistant role is
// sent as "model".
type GeminiAdapter struct {
	client      *genai.Client
	temperature float32
}

// NewGeminiAdapter creates a Gemini adapter using apiKey.
func NewGeminiAdapter(apiKey string, opts AdapterOptions) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.httpClient(),
	}
	if url := opts.baseURL(FamilyGoogle); url != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: url}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiAdapter{client: client, temperature: opts.temperature()}, nil
}

// Ask implements Adapter.
func (a *GeminiAdapter) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	system, contents := toGeminiContents(messages)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(a.temperature),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return "", a.classify(ctx, modelID, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", RequestFailed(FamilyGoogle, modelID, 0, "empty response: no candidates", nil)
	}

	if resp.UsageMetadata != nil {
		L_trace("gemini: completion", "model", modelID,
			"promptTokens", resp.UsageMetadata.PromptTokenCount,
			"candidateTokens", resp.UsageMetadata.CandidatesTokenCount)
	}

	cand := resp.Candidates[0]
	var text string
	if cand != nil && cand.Content != nil {
		text = resp.Text()
	}
	if text == "" {
		reason := "unknown"
		if cand != nil && cand.FinishReason != "" {
			reason = string(cand.FinishReason)
		}
		return "", RequestFailed(FamilyGoogle, modelID, 0, "empty response: finish reason "+reason, nil)
	}
	return text, nil
}

func toGeminiContents(messages []Message) (string, []*genai.Content) {
	system, turns := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return system, contents
}

// classify maps Gemini errors. Quota rejections are HTTP 429 with status
// RESOURCE_EXHAUSTED.
func (a *GeminiAdapter) classify(ctx context.Context, modelID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code, status, msg := 0, "", err.Error()
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, msg = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr):
		code, status, msg = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	}

	if code == http.StatusTooManyRequests || strings.EqualFold(status, "RESOURCE_EXHAUSTED") || IsRateLimitMessage(msg) {
		return RateLimited(FamilyGoogle, modelID, code, err)
	}
	return RequestFailed(FamilyGoogle, modelID, code, msg, err)
}
