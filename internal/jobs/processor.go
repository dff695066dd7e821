package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"resume-feedback/internal/extract"
	"resume-feedback/internal/feedback"
	"resume-feedback/internal/resumes"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/storage/object"
	"resume-feedback/internal/shared/telemetry"
)

const maxFailureDetail = 200

// Analyzer produces feedback for résumé text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) feedback.Record
}

// ExtractFunc loads a stored file and returns its text.
type ExtractFunc func(ctx context.Context, store object.ObjectStore, key string) (string, error)

// Processor runs one analysis attempt for a résumé.
type Processor struct {
	Repo     resumes.Repo
	Store    object.ObjectStore
	Analyzer Analyzer
	Extract  ExtractFunc
	Policy   RetryPolicy
	Now      func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Process runs attempt (0-based) for resumeID. It never panics.
func (p *Processor) Process(ctx context.Context, resumeID string, attempt int) Result {
	fields := map[string]any{"resumeId": resumeID, "attempt": attempt}

	if err := p.Repo.UpdateStatus(ctx, resumeID, resumes.StatusProcessing, p.now()); err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			telemetry.Info("job.resume_missing", fields)
			return Terminal(err)
		}
		return p.fail(ctx, resumeID, attempt, err)
	}
	telemetry.Info("job.started", fields)

	if err := p.run(ctx, resumeID); err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			telemetry.Info("job.resume_missing", fields)
			return Terminal(err)
		}
		return p.fail(ctx, resumeID, attempt, err)
	}
	metrics.IncJobsCompleted()
	telemetry.Info("job.completed", fields)
	return Done()
}

func (p *Processor) run(ctx context.Context, resumeID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("job.panic", map[string]any{
				"resumeId": resumeID,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res, err := p.Repo.GetByID(ctx, resumeID)
	if err != nil {
		return err
	}

	text := res.ExtractedText
	if text == "" {
		extractFn := p.Extract
		if extractFn == nil {
			extractFn = extract.FromStore
		}
		text, err = extractFn(ctx, p.Store, res.StorageKey)
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		if text != "" {
			if err := p.Repo.SetExtractedText(ctx, resumeID, text); err != nil {
				return fmt.Errorf("save extracted text: %w", err)
			}
		} else {
			telemetry.Warn("job.empty_text", map[string]any{"resumeId": resumeID})
		}
	}

	rec := p.Analyzer.Analyze(ctx, text)
	if err := p.Repo.SaveFeedback(ctx, resumeID, rec, p.now()); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, resumeID string, attempt int, err error) Result {
	fields := map[string]any{"resumeId": resumeID, "attempt": attempt, "error": err}
	if attempt < p.Policy.MaxRetries {
		delay := p.Policy.Delay(attempt)
		fields["delayMs"] = delay.Milliseconds()
		telemetry.Warn("job.retry_scheduled", fields)
		metrics.IncJobsRetried()
		return Retry(err, attempt+1, delay)
	}

	telemetry.Error("job.failed", fields)
	metrics.IncJobsFailed()
	metrics.IncAnalysisFailed()
	rec := feedback.Failed("Analysis failed: " + feedback.Truncate(err.Error(), maxFailureDetail))
	if markErr := p.Repo.MarkFailed(ctx, resumeID, rec, p.now()); markErr != nil {
		telemetry.Error("job.mark_failed_error", map[string]any{"resumeId": resumeID, "error": markErr})
	}
	return Terminal(err)
}
