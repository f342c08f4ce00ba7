package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// OllamaAdapter serves the ollama family against a local Ollama server.
// Its credential is the server URL.
type OllamaAdapter struct {
	url         string
	client      *http.Client
	temperature float32
	maxTokens   int
}

// ollamaChatRequest is the request body for Ollama chat API
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  *ollamaOptions      `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the response from Ollama chat API
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

// NewOllamaAdapter creates an adapter for the Ollama server at url.
func NewOllamaAdapter(url string, opts AdapterOptions) (*OllamaAdapter, error) {
	if u := opts.baseURL(FamilyOllama); u != "" {
		url = u
	}
	if url == "" {
		return nil, fmt.Errorf("ollama URL not configured")
	}
	return &OllamaAdapter{
		url:         strings.TrimSuffix(url, "/"),
		client:      opts.httpClient(),
		temperature: opts.temperature(),
		maxTokens:   opts.maxTokens(),
	}, nil
}

// Ask implements Adapter.
func (a *OllamaAdapter) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    modelID,
		Messages: make([]ollamaChatMessage, 0, len(messages)),
		Stream:   false,
		Options:  &ollamaOptions{Temperature: a.temperature, NumPredict: a.maxTokens},
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", RequestFailed(FamilyOllama, modelID, 0, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", RequestFailed(FamilyOllama, modelID, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", RequestFailed(FamilyOllama, modelID, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(body))
		var parsed ollamaChatResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			detail = parsed.Error
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", RateLimited(FamilyOllama, modelID, resp.StatusCode, fmt.Errorf("%s", detail))
		}
		return "", RequestFailed(FamilyOllama, modelID, resp.StatusCode, detail, nil)
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", RequestFailed(FamilyOllama, modelID, resp.StatusCode, "failed to decode response", err)
	}
	if result.Error != "" {
		return "", RequestFailed(FamilyOllama, modelID, resp.StatusCode, result.Error, nil)
	}

	if result.Message.Content == "" {
		return "", RequestFailed(FamilyOllama, modelID, resp.StatusCode, "empty response", nil)
	}

	L_trace("ollama: completion", "model", modelID, "chars", len(result.Message.Content))
	return result.Message.Content, nil
}
