package chatbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIClientRespondReturnsChoiceContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(openAIResponse{
			Choices: []openAIChoice{{Message: openAIMessage{Role: "assistant", Content: "sourdough starter basics"}}},
		})
	}))
	defer srv.Close()

	original := openAIAPIURL
	openAIAPIURL = srv.URL
	defer func() { openAIAPIURL = original }()

	c := NewOpenAIClient("test-key", "")
	reply, err := c.Respond(context.Background(), map[string]string{"active_task": "Baking"}, "what next?")
	require.NoError(t, err)
	require.Equal(t, "sourdough starter basics", reply)
}
