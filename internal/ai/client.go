package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotConfigured indicates the AI client is not configured
	ErrNotConfigured = errors.New("AI client not configured")
	// ErrAPICallFailed indicates the AI API call failed
	ErrAPICallFailed = errors.New("AI API call failed")
	// ErrInvalidResponse indicates an invalid response from the AI API
	ErrInvalidResponse = errors.New("invalid AI API response")
)

// Provider represents an AI provider
type Provider string

const (
	// ProviderOpenAI represents OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderClaude represents Anthropic Claude API
	ProviderClaude Provider = "claude"
	// ProviderCustom represents a custom OpenAI-compatible endpoint
	ProviderCustom Provider = "custom"
)

// Client is the text-completion capability behind urgency triage and prose
// generation. It speaks the chat-completions wire format; Claude differs only
// in auth headers.
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a configured Client. An empty baseURL picks the
// provider's default endpoint; an empty model picks a provider default.
func NewClient(provider, apiKey, model, baseURL string) *Client {
	c := &Client{
		provider: Provider(strings.ToLower(provider)),
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return c
	}
	switch c.provider {
	case ProviderClaude:
		c.baseURL = "https://api.anthropic.com/v1"
		if c.model == "" {
			c.model = "claude-3-haiku-20240307"
		}
	default:
		c.provider = ProviderOpenAI
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4-turbo"
		}
	}
	return c
}

// WithModel returns a client identical to c but targeting a different model.
// Used to configure per-stage models independently.
func (c *Client) WithModel(model string) *Client {
	clone := *c
	if model != "" {
		clone.model = model
	}
	return &clone
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// chatMessage represents a message in a chat conversation
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a chat completion request
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatResponse represents a chat completion response
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a system instruction and a user prompt and returns the
// generated text.
func (c *Client) Complete(system, user string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	}

	respBody, err := c.post("/chat/completions", request)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	return chatResp.Choices[0].Message.Content, nil
}

// embeddingRequest represents an embeddings request
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse represents an embeddings response
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one embedding vector per input text.
func (c *Client) Embed(model string, inputs []string) ([][]float64, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	respBody, err := c.post("/embeddings", embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrAPICallFailed, embResp.Error.Message)
	}
	if len(embResp.Data) != len(inputs) {
		return nil, ErrInvalidResponse
	}

	vectors := make([][]float64, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// post marshals a request body, sends it and returns the raw response body.
func (c *Client) post(path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch c.provider {
	case ProviderClaude:
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
