// Package openai implements llm.Client against OpenAI-compatible chat
// completion endpoints (OpenAI, Groq).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-feedback/internal/llm"
	"resume-feedback/internal/shared/telemetry"
)

const (
	OpenAIURL = "https://api.openai.com/v1/chat/completions"
	GroqURL   = "https://api.groq.com/openai/v1/chat/completions"

	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// Client implements llm.Client using the Chat Completions API.
type Client struct {
	provider   string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Options configures a Client. Endpoint defaults to OpenAIURL.
type Options struct {
	Provider   string
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient constructs a chat completion client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = OpenAIURL
	}
	provider := strings.TrimSpace(opts.Provider)
	if provider == "" {
		provider = "openai"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		provider:   provider,
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends one chat completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("%s: model is required", c.provider)
	}
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}
	if req.TopP > 0 {
		topP := req.TopP
		body.TopP = &topP
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &llm.StatusError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s response parse: %w", c.provider, err)
	}
	if parsed.Error != nil {
		return "", errors.New(c.provider + " error: " + parsed.Error.Message)
	}
	logUsage(c.provider, req.Model, parsed, time.Since(start))
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func errorMessage(raw []byte) string {
	var wrapped struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func logUsage(provider, model string, resp chatResponse, elapsed time.Duration) {
	fields := map[string]any{
		"provider":  provider,
		"model":     model,
		"latencyMs": elapsed.Milliseconds(),
	}
	if resp.Usage != nil {
		fields["promptTokens"] = resp.Usage.PromptTokens
		fields["completionTokens"] = resp.Usage.CompletionTokens
		fields["totalTokens"] = resp.Usage.TotalTokens
	}
	telemetry.Info("llm.usage", fields)
}
