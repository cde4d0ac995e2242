package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "not urgent"}}},
		})
	}))
	defer server.Close()

	c := NewClient("openai", "test-key", "test-model", server.URL)
	got, err := c.Complete("be brief", "is this urgent?")
	require.NoError(t, err)
	assert.Equal(t, "not urgent", got)
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewClient("openai", "", "m", "")
	_, err := c.Complete("s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	c := NewClient("openai", "k", "m", server.URL)
	_, err := c.Complete("s", "u")
	assert.ErrorIs(t, err, ErrAPICallFailed)
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	c := NewClient("openai", "k", "m", server.URL)
	_, err := c.Complete("s", "u")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestComplete_ClaudeHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	c := NewClient("claude", "test-key", "m", server.URL)
	_, err := c.Complete("s", "u")
	require.NoError(t, err)
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Write([]byte(`{"data":[{"embedding":[1,0]},{"embedding":[0,1]}]}`))
	}))
	defer server.Close()

	c := NewClient("openai", "k", "m", server.URL)
	vectors, err := c.Embed("embed-model", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0}, vectors[0])
	assert.Equal(t, []float64{0, 1}, vectors[1])
}

func TestEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	c := NewClient("openai", "k", "m", server.URL)
	_, err := c.Embed("embed-model", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestWithModel(t *testing.T) {
	base := NewClient("openai", "k", "base-model", "")
	triage := base.WithModel("triage-model")

	assert.Equal(t, "base-model", base.Model())
	assert.Equal(t, "triage-model", triage.Model())
	// Empty override keeps the original model.
	assert.Equal(t, "base-model", base.WithModel("").Model())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("openai", "k", "", "")
	assert.Equal(t, "gpt-4-turbo", c.Model())

	c = NewClient("claude", "k", "", "")
	assert.Equal(t, "claude-3-haiku-20240307", c.Model())

	// Unknown providers fall back to the OpenAI endpoint.
	c = NewClient("something-else", "k", "m", "")
	assert.Equal(t, ProviderOpenAI, c.provider)
}
