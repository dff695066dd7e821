// Package workerproc turns raw queue payloads into analysis job runs.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"resume-feedback/internal/jobs"
	"resume-feedback/internal/queue"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body []byte) MessageMeta {
	if len(body) == 0 {
		return MessageMeta{}
	}
	sum := sha256.Sum256(body)
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingResumeID indicates a message without a résumé id.
type ErrMissingResumeID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingResumeID) Error() string { return "missing resume id" }

// ErrRequeue means the message must be redelivered by the queue runtime
// because the retry could not be scheduled.
type ErrRequeue struct {
	ResumeID string
	Err      error
}

func (e ErrRequeue) Error() string {
	if e.Err == nil {
		return "requeue " + e.ResumeID
	}
	return "requeue " + e.ResumeID + ": " + e.Err.Error()
}

func (e ErrRequeue) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body []byte) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(string(body)) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage(body)
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.ResumeID) == "" {
		return msg, meta, ErrMissingResumeID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// IsInvalid reports whether err is a permanent payload problem.
func IsInvalid(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingResumeID
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// Processor runs one analysis attempt.
type Processor interface {
	Process(ctx context.Context, resumeID string, attempt int) jobs.Result
}

// Handler consumes analysis messages. Retries are re-sent through Queue
// with the delay chosen by the processor.
type Handler struct {
	Processor Processor
	Queue     queue.Client
	Now       func() time.Time
}

// HandleMessage processes one payload. A nil return means the message may
// be acknowledged; undecodable payloads are logged and acknowledged.
func (h *Handler) HandleMessage(ctx context.Context, body []byte) error {
	if h == nil || h.Processor == nil {
		return errors.New("analysis processor not configured")
	}
	msg, meta, err := ParseMessage(body)
	if err != nil {
		if !IsInvalid(err) {
			return err
		}
		metrics.IncJobsDroppedInvalid()
		telemetry.Warn("job.invalid_message", map[string]any{
			"error":   err,
			"bodyLen": meta.BodyLen,
			"bodySha": meta.BodySHA,
		})
		return nil
	}
	metrics.IncJobsReceived()

	ctx = queue.WithRequestID(ctx, msg.RequestID)
	result := h.Processor.Process(ctx, msg.ResumeID, msg.Attempt)
	if result.Outcome != jobs.RetryableFailure {
		return nil
	}

	next := msg.Retry(h.now())
	next.Attempt = result.NextAttempt
	if err := h.Queue.SendDelayed(ctx, next, result.Delay); err != nil {
		telemetry.Error("job.retry_enqueue_failed", map[string]any{
			"resumeId": msg.ResumeID,
			"attempt":  next.Attempt,
			"error":    err,
		})
		return ErrRequeue{ResumeID: msg.ResumeID, Err: err}
	}
	return nil
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
