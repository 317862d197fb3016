// Package chatbackend implements the ChatBackend capability (spec §6):
// a minimal client for a conversational-model API, adapted from the
// teacher's own hand-rolled cmd/memex-cli/client/anthropic.go. The
// engine only needs a single blocking request/response per chat_context
// call, not the teacher's SSE streaming, so this is the non-streaming
// subset of that client's wire format.
package chatbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// anthropicAPIURL is a var, not a const, so tests can point it at a
// local httptest server.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

const (
	anthropicAPIVersion = "2023-06-01"
	defaultModel        = "claude-sonnet-4-20250514"
	defaultMaxTokens    = 1024
)

// AnthropicClient implements core.ChatBackend against the Anthropic
// Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient builds a client. An empty apiKey falls back to
// ANTHROPIC_API_KEY, matching the teacher's NewAnthropicClient.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = defaultModel
	}
	return &AnthropicClient{apiKey: apiKey, model: model, httpClient: &http.Client{}}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Respond implements core.ChatBackend: it serializes contextDocument as
// the system prompt and sends query as the single user message.
func (c *AnthropicClient) Respond(ctx context.Context, contextDocument any, query string) (string, error) {
	systemPrompt, err := json.Marshal(contextDocument)
	if err != nil {
		return "", fmt.Errorf("marshal context document: %w", err)
	}

	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System:    string(systemPrompt),
		Messages:  []message{{Role: "user", Content: query}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
