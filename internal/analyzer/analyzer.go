// Package analyzer turns résumé text into a feedback record with a single
// model call. It never fails: every failure mode maps to a degraded record.
package analyzer

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"resume-feedback/internal/feedback"
	"resume-feedback/internal/llm"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/telemetry"
)

const (
	MaxTokens   = 1500
	Temperature = float32(0.7)
	TopP        = float32(0.9)
)

const (
	ErrorRateLimited = feedback.ErrorRateLimited
	ErrorTimeout     = feedback.ErrorTimeout
	ErrorConnection  = feedback.ErrorConnection
	ErrorOther       = feedback.ErrorOther
)

// Analyzer calls the configured model. A nil Client means no credential is
// configured.
type Analyzer struct {
	Client   llm.Client
	Provider string
	Model    string
}

// New returns an Analyzer. Pass a nil client when the credential is missing.
func New(client llm.Client, provider, model string) *Analyzer {
	return &Analyzer{Client: client, Provider: provider, Model: model}
}

// Analyze returns feedback for text. It does not retry.
func (a *Analyzer) Analyze(ctx context.Context, text string) feedback.Record {
	metrics.IncAnalysisStarted()
	if a == nil || a.Client == nil {
		telemetry.Warn("analysis.not_configured", map[string]any{"provider": a.provider()})
		metrics.IncAnalysisDegraded()
		return feedback.ConfigError()
	}

	start := time.Now()
	reply, err := a.Client.Complete(ctx, llm.Request{
		Model:       a.Model,
		System:      systemPrompt,
		Prompt:      BuildPrompt(text),
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		TopP:        TopP,
	})
	metrics.ObserveAnalysisDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		class := ClassifyError(err)
		telemetry.Warn("analysis.provider_error", map[string]any{
			"provider": a.provider(),
			"model":    a.Model,
			"class":    string(class),
			"error":    err,
		})
		metrics.IncAnalysisDegraded()
		return feedback.ForError(class, err)
	}
	if strings.TrimSpace(reply) == "" {
		telemetry.Warn("analysis.empty_reply", map[string]any{"provider": a.provider(), "model": a.Model})
		metrics.IncAnalysisDegraded()
		return feedback.NoResponse()
	}

	rec := feedback.Normalize(reply)
	if rec.Placeholder {
		metrics.IncAnalysisDegraded()
	} else {
		metrics.IncAnalysisCompleted()
	}
	return rec
}

func (a *Analyzer) provider() string {
	if a == nil {
		return ""
	}
	return a.Provider
}

// ClassifyError maps a provider error to an ErrorClass.
func ClassifyError(err error) feedback.ErrorClass {
	if err == nil {
		return ErrorOther
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.RateLimited():
			return ErrorRateLimited
		case statusErr.Timeout():
			return ErrorTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		return ErrorRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ErrorTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ErrorConnection
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") || strings.Contains(msg, "broken pipe") {
		return ErrorConnection
	}
	return ErrorOther
}
