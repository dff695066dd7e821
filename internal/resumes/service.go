package resumes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-feedback/internal/feedback"
	"resume-feedback/internal/queue"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/storage/object"
	"resume-feedback/internal/shared/telemetry"
	"resume-feedback/internal/shared/util"
)

const (
	// MaxUploadBytes is the largest accepted file; exactly this size is allowed.
	MaxUploadBytes = 5 << 20

	DefaultListLimit = 20
	MaxListLimit     = 50

	pdfMimeType = "application/pdf"
	sniffLen    = 512
)

// Service contains the upload, listing and deletion logic for résumés.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Queue queue.Client
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UploadFile describes one uploaded file.
type UploadFile struct {
	// Name is the uploaded file's own name and decides whether it is a PDF.
	Name string
	// DisplayName is an optional label shown instead of Name.
	DisplayName string
	// Size is the declared size; the body is also counted while saving.
	Size int64
	Body io.Reader
}

// Upload validates and stores a PDF, records it as pending and enqueues its
// analysis.
func (s *Service) Upload(ctx context.Context, userID string, f UploadFile) (Resume, error) {
	if strings.TrimSpace(userID) == "" || f.Body == nil {
		return Resume{}, ErrInvalidInput
	}
	name, err := util.SanitizeFileName(f.Name)
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !util.HasExtension(name, ".pdf") {
		return Resume{}, ErrNotPDF
	}
	if f.Size > MaxUploadBytes {
		return Resume{}, ErrFileTooLarge
	}
	display := name
	if strings.TrimSpace(f.DisplayName) != "" {
		if display, err = util.SanitizeFileName(f.DisplayName); err != nil {
			return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	body := bufio.NewReaderSize(f.Body, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return Resume{}, fmt.Errorf("read upload: %w", err)
	}
	if http.DetectContentType(head) != pdfMimeType {
		return Resume{}, ErrNotPDF
	}

	key, written, mimeType, err := s.Store.Save(ctx, userID, name, io.LimitReader(body, MaxUploadBytes+1))
	if err != nil {
		return Resume{}, fmt.Errorf("store file: %w", err)
	}
	if written > MaxUploadBytes {
		s.discard(ctx, key)
		return Resume{}, ErrFileTooLarge
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = pdfMimeType
	}

	now := s.now()
	res := Resume{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		FileName:               display,
		StorageKey:             key,
		SizeBytes:              written,
		MimeType:               mimeType,
		Status:                 StatusPending,
		Strengths:              []string{},
		Weaknesses:             []string{},
		MissingSkills:          []string{},
		ImprovementSuggestions: []string{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.Repo.Create(ctx, res); err != nil {
		s.discard(ctx, key)
		return Resume{}, err
	}
	telemetry.Info("resume.uploaded", map[string]any{
		"resumeId":  res.ID,
		"userId":    userID,
		"sizeBytes": written,
	})

	return s.enqueue(ctx, res)
}

// enqueue schedules analysis. A record that cannot be scheduled is failed
// so the owner can request a fresh run.
func (s *Service) enqueue(ctx context.Context, res Resume) (Resume, error) {
	if s.Queue == nil {
		return res, nil
	}
	msg := queue.NewMessage(res.ID, queue.RequestIDFromContext(ctx), s.now())
	err := s.Queue.Send(ctx, msg)
	if err == nil {
		return res, nil
	}
	telemetry.Error("resume.enqueue_failed", map[string]any{"resumeId": res.ID, "error": err})
	at := s.now()
	rec := feedback.Failed("Analysis failed: could not schedule analysis")
	if markErr := s.Repo.MarkFailed(ctx, res.ID, rec, at); markErr != nil {
		return Resume{}, errors.Join(err, markErr)
	}
	return s.Repo.GetByID(ctx, res.ID)
}

// List returns the owner's résumés newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, ClampLimit(limit), max(offset, 0))
}

// Get returns one of the owner's résumés.
func (s *Service) Get(ctx context.Context, userID, id string) (Resume, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return Resume{}, ErrNotFound
	}
	return s.Repo.GetForUser(ctx, userID, id)
}

// Delete removes the stored file and then the record. File removal
// failures are logged and do not block deleting the record.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	res, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.Remove(ctx, res)
}

// Remove deletes res without an ownership check; cleanup uses it.
func (s *Service) Remove(ctx context.Context, res Resume) error {
	if res.StorageKey != "" && s.Store != nil {
		if err := s.Store.Delete(ctx, res.StorageKey); err != nil {
			metrics.IncCleanupFileErrors()
			telemetry.Warn("resume.file_delete_failed", map[string]any{
				"resumeId":   res.ID,
				"storageKey": res.StorageKey,
				"error":      err,
			})
		}
	}
	if err := s.Repo.Delete(ctx, res.ID); err != nil {
		return err
	}
	telemetry.Info("resume.deleted", map[string]any{"resumeId": res.ID, "userId": res.UserID})
	return nil
}

// Reanalyze starts a fresh analysis run for a completed or failed résumé.
func (s *Service) Reanalyze(ctx context.Context, userID, id string) (Resume, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return Resume{}, ErrNotFound
	}
	res, err := s.Repo.ResetForReanalysis(ctx, userID, id, s.now())
	if err != nil {
		return Resume{}, err
	}
	telemetry.Info("resume.reanalysis_requested", map[string]any{"resumeId": id, "userId": userID})
	return s.enqueue(ctx, res)
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Warn("resume.discard_failed", map[string]any{"storageKey": key, "error": err})
	}
}

// ClampLimit applies the list default and maximum.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
