package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// Defaults for the OpenAI-compatible client.
const (
	DefaultTemperature = 0.3
	DefaultTimeout     = 45 * time.Second
)

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
// Works with OpenAI, Azure OpenAI, Ollama's /v1 surface, vLLM and
// other compatible servers.
type OpenAIConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient calls a /v1/chat/completions endpoint.
type OpenAIClient struct {
	client *http.Client
	config OpenAIConfig
}

var _ Generator = (*OpenAIClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a chat completion client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

// Complete sends a chat completion request and returns the response text.
// Transient failures are retried with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	return scherrors.RetryWithResult(ctx, scherrors.DefaultRetryConfig(), func() (string, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
		return c.doComplete(reqCtx, req)
	})
}

func (c *OpenAIClient) doComplete(ctx context.Context, req Request) (string, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	temperature := c.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	body := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", scherrors.Wrap(err, scherrors.ErrCodeLLMFailed, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", scherrors.Wrap(err, scherrors.ErrCodeLLMUnavailable, "chat request failed").
			WithRetryable(true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// Rate limits and server errors are worth retrying, client
		// errors such as a bad request or invalid key are not.
		return "", scherrors.Newf(scherrors.ErrCodeLLMFailed,
			"chat completion returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", scherrors.Wrap(err, scherrors.ErrCodeLLMBadOutput, "decode chat response")
	}
	if result.Error != nil {
		return "", scherrors.Newf(scherrors.ErrCodeLLMFailed, "chat completion error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", scherrors.New(scherrors.ErrCodeLLMBadOutput, "chat completion returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}

// ModelName returns the configured model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.config.Model
}
