package chatbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnthropicClientRespondParsesTextBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "what are you looking at?", req.Messages[0].Content)

		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "a Go concurrency tutorial"}},
		})
	}))
	defer srv.Close()

	original := anthropicAPIURL
	anthropicAPIURL = srv.URL
	defer func() { anthropicAPIURL = original }()

	c := NewAnthropicClient("test-key", "")
	reply, err := c.Respond(context.Background(), map[string]string{"active_task": "Learning Go"}, "what are you looking at?")
	require.NoError(t, err)
	require.Equal(t, "a Go concurrency tutorial", reply)
}

func TestAnthropicClientRespondSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(messagesResponse{Error: &apiError{Type: "overloaded_error", Message: "try again"}})
	}))
	defer srv.Close()

	original := anthropicAPIURL
	anthropicAPIURL = srv.URL
	defer func() { anthropicAPIURL = original }()

	c := NewAnthropicClient("test-key", "")
	_, err := c.Respond(context.Background(), map[string]string{}, "hi")
	require.Error(t, err)
}
