package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectChunks(t *testing.T, ch <-chan Chunk) (texts []string, streamErr error) {
	t.Helper()
	for chunk := range ch {
		if chunk.Err != nil {
			return texts, chunk.Err
		}
		texts = append(texts, chunk.Text)
	}
	return texts, nil
}

// TestOllamaChat checks the non-streaming request and response shapes.
func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5:7b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"你好！有什么可以帮你的？"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	got, err := p.Chat(context.Background(), BuildMessages("be brief", nil, "你好"))
	require.NoError(t, err)
	assert.Equal(t, "你好！有什么可以帮你的？", got)
}

// TestOllamaChatStream feeds newline-delimited JSON deltas and expects
// segmented sentences plus the flushed remainder.
func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		fmt.Fprintln(w, `{"message":{"content":"你好"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"！今天"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"很好"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	ch, err := p.ChatStream(context.Background(), BuildMessages("", nil, "你好"))
	require.NoError(t, err)

	texts, streamErr := collectChunks(t, ch)
	require.NoError(t, streamErr)
	assert.Equal(t, []string{"你好！", "今天很好"}, texts)
}

// TestOllamaChatStreamServerError surfaces an in-band error object as
// the final chunk.
func TestOllamaChatStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"第一句。"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model runner crashed"}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	ch, err := p.ChatStream(context.Background(), BuildMessages("", nil, "hi"))
	require.NoError(t, err)

	texts, streamErr := collectChunks(t, ch)
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "model runner crashed")
	assert.Equal(t, []string{"第一句。"}, texts)
}

// TestOllamaChatHTTPError turns a non-200 into a synchronous error.
func TestOllamaChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), BuildMessages("", nil, "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

// TestOllamaHealth probes the tags endpoint.
func TestOllamaHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprintln(w, `{"models":[]}`)
	}))

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	assert.NoError(t, p.Health(context.Background()))

	srv.Close()
	assert.ErrorIs(t, p.Health(context.Background()), ErrProviderUnavailable)
}
