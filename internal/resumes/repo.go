package resumes

import (
	"context"
	"time"

	"resume-feedback/internal/feedback"
)

// Repo persists résumé records. Lookups of unknown ids return ErrNotFound.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	GetByID(ctx context.Context, id string) (Resume, error)
	// GetForUser is owner-scoped; records of other users are ErrNotFound.
	GetForUser(ctx context.Context, userID, id string) (Resume, error)
	// ListByUser returns the owner's records newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error)
	// UpdateStatus sets status and bumps attempts when moving to processing.
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
	// SetExtractedText writes text only when no text is stored yet.
	SetExtractedText(ctx context.Context, id, text string) error
	SaveFeedback(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error
	MarkFailed(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error
	// ResetForReanalysis moves a terminal record back to pending and clears
	// its analysis. Non-terminal records return ErrAnalysisInFlight.
	ResetForReanalysis(ctx context.Context, userID, id string, at time.Time) (Resume, error)
	Delete(ctx context.Context, id string) error
	// ListCreatedBefore returns up to limit records created before cutoff,
	// oldest first.
	ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Resume, error)
}
