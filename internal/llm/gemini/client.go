// Package gemini implements llm.Client with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"resume-feedback/internal/llm"
	"resume-feedback/internal/shared/telemetry"
)

// generator is the subset of genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client.
type Client struct {
	models  generator
	timeout time.Duration
}

// NewClient builds a Gemini API client.
func NewClient(ctx context.Context, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{models: client.Models, timeout: timeout}, nil
}

// Complete generates a single reply.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(req.TopP)
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	fields := map[string]any{
		"provider":  "gemini",
		"model":     req.Model,
		"latencyMs": time.Since(start).Milliseconds(),
	}
	if resp != nil && resp.UsageMetadata != nil {
		fields["promptTokens"] = resp.UsageMetadata.PromptTokenCount
		fields["completionTokens"] = resp.UsageMetadata.CandidatesTokenCount
		fields["totalTokens"] = resp.UsageMetadata.TotalTokenCount
	}
	telemetry.Info("llm.usage", fields)
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Text()), nil
}
