package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientChatCompletions(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"RAM_more = true"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL + "/v1/chat/completions", Model: "gpt-4o-mini", APIKey: "sk-test", MaxTokens: 321})
	text, err := c.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "RAM_more = true", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 321, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestClientOllamaGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"model":"llama3","response":"screen_small = false","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL + "/api/generate", Model: "llama3"})
	text, err := c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "screen_small = false", text)
	assert.Equal(t, "prompt", got.Prompt)
	assert.False(t, got.Stream)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Model: "m"})
	_, err := c.Complete(context.Background(), "sys", "prompt")
	assert.ErrorContains(t, err, "llm status 401")
}

func TestResponseTextShapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"choices":[{"message":{"content":"chat"}}]}`, "chat"},
		{`{"choices":[{"text":"legacy"}]}`, "legacy"},
		{`{"response":"generate"}`, "generate"},
		{`{"text":"plain"}`, "plain"},
		{`{"message":{"role":"assistant","content":"ollama chat"}}`, "ollama chat"},
		{"  not json  ", "not json"},
		{`{"choices":[]}`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, responseText([]byte(tt.body)), tt.body)
	}
}
