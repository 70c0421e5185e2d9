package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/migrator/api/schemas"
	"github.com/xkilldash9x/migrator/internal/config"
)

func setupOllamaClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := getValidLLMConfig(config.ProviderOllama)
	cfg.Endpoint = server.URL
	client, err := NewOllamaClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestOllamaClient_StreamsNDJSON(t *testing.T) {
	t.Parallel()
	var req map[string]any
	client := setupOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/x-ndjson")
		for i, part := range []string{"public ", "class ", "Foo"} {
			fmt.Fprintf(w, `{"model":"test-model","message":{"role":"assistant","content":%q},"done":%t}`+"\n", part, i == 2)
		}
	})

	text, _, err := drain(t, client, conversation())
	require.NoError(t, err)
	assert.Equal(t, "public class Foo", text)
	assert.Equal(t, "test-model", req["model"])
	assert.Equal(t, true, req["stream"])
}

func TestOllamaClient_InvokeAndErrors(t *testing.T) {
	t.Parallel()
	client := setupOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"model":"test-model","message":{"role":"assistant","content":"done"},"done":true}`)
	})
	msg, err := client.Invoke(context.Background(), conversation(), schemas.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.False(t, client.ToolCallsSupported())

	failing := setupOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	})
	_, _, err = drain(t, failing, conversation())
	assert.ErrorContains(t, err, "ollama chat failed")
}
