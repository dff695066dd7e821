package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"resume-feedback/internal/feedback"
	"resume-feedback/internal/resumes"
	"resume-feedback/internal/shared/storage/object"
	"resume-feedback/internal/shared/telemetry"
)

type stubAnalyzer struct {
	calls atomic.Int32
	rec   feedback.Record
	panic bool
}

func (a *stubAnalyzer) Analyze(ctx context.Context, text string) feedback.Record {
	a.calls.Add(1)
	if a.panic {
		panic("analyzer exploded")
	}
	return a.rec
}

// flakyRepo fails SaveFeedback a fixed number of times.
type flakyRepo struct {
	*resumes.MemoryRepo
	saveFailures atomic.Int32
}

func (r *flakyRepo) SaveFeedback(ctx context.Context, id string, rec feedback.Record, at time.Time) error {
	if r.saveFailures.Load() > 0 {
		r.saveFailures.Add(-1)
		return errors.New("database unavailable")
	}
	return r.MemoryRepo.SaveFeedback(ctx, id, rec, at)
}

type fixture struct {
	repo      *flakyRepo
	analyzer  *stubAnalyzer
	extracted atomic.Int32
	proc      *Processor
	clock     time.Time
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	t.Cleanup(telemetry.SetOutput(io.Discard))
	f := &fixture{
		repo:     &flakyRepo{MemoryRepo: resumes.NewMemoryRepo()},
		analyzer: &stubAnalyzer{rec: feedback.Record{OverallScore: 72, ATSScore: 65, Strengths: []string{"Go"}}},
		clock:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.proc = &Processor{
		Repo:     f.repo,
		Analyzer: f.analyzer,
		Policy:   DefaultRetryPolicy(),
		Extract: func(ctx context.Context, store object.ObjectStore, key string) (string, error) {
			f.extracted.Add(1)
			return text, nil
		},
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
	}
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	if err := f.repo.Create(context.Background(), resumes.Resume{
		ID: "r-1", UserID: "u-1", FileName: "cv.pdf", StorageKey: "k", Status: resumes.StatusPending,
		CreatedAt: created, UpdatedAt: created,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	return f
}

func (f *fixture) get(t *testing.T) resumes.Resume {
	t.Helper()
	res, err := f.repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return res
}

func TestProcessCompletes(t *testing.T) {
	f := newFixture(t, "Jane Doe, Go engineer")
	got := f.proc.Process(context.Background(), "r-1", 0)
	if got.Outcome != Success {
		t.Fatalf("result = %+v", got)
	}
	res := f.get(t)
	if res.Status != resumes.StatusCompleted || res.OverallScore == nil || *res.OverallScore != 72 {
		t.Fatalf("resume = %+v", res)
	}
	if res.ExtractedText != "Jane Doe, Go engineer" || res.AnalyzedAt == nil || !res.AnalyzedAt.After(res.CreatedAt) {
		t.Fatalf("resume = %+v", res)
	}
	if res.Feedback == nil || res.Feedback.ATSScore != 65 {
		t.Fatalf("feedback = %+v", res.Feedback)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t, "text")
	ctx := context.Background()
	if r := f.proc.Process(ctx, "r-1", 0); r.Outcome != Success {
		t.Fatalf("first run = %+v", r)
	}
	first := f.get(t)
	if r := f.proc.Process(ctx, "r-1", 0); r.Outcome != Success {
		t.Fatalf("second run = %+v", r)
	}
	second := f.get(t)

	if n := f.extracted.Load(); n != 1 {
		t.Fatalf("extractor calls = %d, want 1", n)
	}
	if second.Status != resumes.StatusCompleted || *second.OverallScore != *first.OverallScore {
		t.Fatalf("second = %+v", second)
	}
	if second.ExtractedText != first.ExtractedText {
		t.Fatal("extracted text changed")
	}
}

func TestProcessEmptyTextStillAnalyzes(t *testing.T) {
	f := newFixture(t, "")
	if r := f.proc.Process(context.Background(), "r-1", 0); r.Outcome != Success {
		t.Fatalf("result = %+v", r)
	}
	if f.analyzer.calls.Load() != 1 || f.get(t).ExtractedText != "" {
		t.Fatal("expected analysis with empty text")
	}
}

func TestProcessMissingResumeIsQuiet(t *testing.T) {
	f := newFixture(t, "text")
	got := f.proc.Process(context.Background(), "nope", 0)
	if got.Outcome != TerminalFailure || !errors.Is(got.Err, resumes.ErrNotFound) {
		t.Fatalf("result = %+v", got)
	}
	if f.analyzer.calls.Load() != 0 {
		t.Fatal("analyzer called for a missing resume")
	}
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, "text")
	f.repo.saveFailures.Store(2)
	ctx := context.Background()

	attempt := 0
	var delays []time.Duration
	for {
		r := f.proc.Process(ctx, "r-1", attempt)
		if r.Outcome == Success {
			break
		}
		if r.Outcome != RetryableFailure {
			t.Fatalf("attempt %d: result = %+v", attempt, r)
		}
		delays = append(delays, r.Delay)
		attempt = r.NextAttempt
	}
	if attempt != 2 {
		t.Fatalf("succeeded on attempt %d, want 2", attempt)
	}
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("delays = %v", delays)
	}
	res := f.get(t)
	if res.Status != resumes.StatusCompleted || res.Attempts != 3 {
		t.Fatalf("resume = %+v", res)
	}
}

func TestProcessAllFailuresMarksFailed(t *testing.T) {
	f := newFixture(t, "text")
	f.repo.saveFailures.Store(100)
	ctx := context.Background()

	attempt := 0
	var last Result
	for i := 0; i < 10; i++ {
		last = f.proc.Process(ctx, "r-1", attempt)
		if last.Outcome != RetryableFailure {
			break
		}
		attempt = last.NextAttempt
	}
	if last.Outcome != TerminalFailure {
		t.Fatalf("last = %+v", last)
	}
	if attempt != 3 {
		t.Fatalf("gave up on attempt %d, want 3", attempt)
	}
	res := f.get(t)
	if res.Status != resumes.StatusFailed || res.OverallScore == nil || *res.OverallScore != 0 || res.AnalyzedAt == nil {
		t.Fatalf("resume = %+v", res)
	}
	if len(res.Weaknesses) != 1 || !strings.HasPrefix(res.Weaknesses[0], "Analysis failed: ") ||
		!strings.Contains(res.Weaknesses[0], "database unavailable") {
		t.Fatalf("weaknesses = %v", res.Weaknesses)
	}
}

func TestProcessRecoversPanics(t *testing.T) {
	f := newFixture(t, "text")
	f.analyzer.panic = true
	got := f.proc.Process(context.Background(), "r-1", 0)
	if got.Outcome != RetryableFailure || got.Err == nil || !strings.Contains(got.Err.Error(), "analyzer exploded") {
		t.Fatalf("result = %+v", got)
	}
}

func TestProcessFailureDetailTruncated(t *testing.T) {
	f := newFixture(t, "text")
	f.proc.Extract = func(ctx context.Context, store object.ObjectStore, key string) (string, error) {
		return "", errors.New(strings.Repeat("e", 500))
	}
	f.proc.Policy.MaxRetries = 0
	if r := f.proc.Process(context.Background(), "r-1", 0); r.Outcome != TerminalFailure {
		t.Fatalf("result = %+v", r)
	}
	w := f.get(t).Weaknesses[0]
	if got := len([]rune(strings.TrimPrefix(w, "Analysis failed: "))); got != 200 {
		t.Fatalf("detail length = %d", got)
	}
}

func TestRetryPolicySchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	got := p.Schedule()
	if len(got) != len(want) {
		t.Fatalf("schedule = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("schedule = %v", got)
		}
	}
	if (RetryPolicy{BaseDelay: time.Second}).Delay(3) != time.Second {
		t.Fatal("multiplier below 1 should not shrink delays")
	}
	if got := p.Delay(2); got != 8*time.Second {
		t.Fatalf("Delay(2) = %s", got)
	}
	huge := RetryPolicy{MaxRetries: 40, BaseDelay: time.Hour, Multiplier: 10}
	if got := huge.Delay(30); got != maxRetryDelay {
		t.Fatalf("Delay(30) = %s, want cap %s", got, maxRetryDelay)
	}
}
