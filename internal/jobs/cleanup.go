package jobs

import (
	"context"
	"errors"
	"time"

	"resume-feedback/internal/resumes"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/telemetry"
)

// DefaultRetention is how long résumés are kept.
const DefaultRetention = 365 * 24 * time.Hour

const defaultCleanupBatch = 200

// Remover deletes a résumé's file and record.
type Remover interface {
	Remove(ctx context.Context, res resumes.Resume) error
}

// Cleanup deletes résumés older than Retention.
type Cleanup struct {
	Repo      resumes.Repo
	Remover   Remover
	Retention time.Duration
	BatchSize int
	Now       func() time.Time
}

// Run deletes every expired résumé and returns how many were removed.
func (c *Cleanup) Run(ctx context.Context) (int, error) {
	retention := c.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	batch := c.BatchSize
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}
	cutoff := now.Add(-retention)

	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		expired, err := c.Repo.ListCreatedBefore(ctx, cutoff, batch)
		if err != nil {
			return deleted, err
		}
		for _, res := range expired {
			if err := c.Remover.Remove(ctx, res); err != nil {
				if errors.Is(err, resumes.ErrNotFound) {
					continue
				}
				metrics.AddCleanupDeleted(deleted)
				return deleted, err
			}
			deleted++
		}
		if len(expired) < batch {
			break
		}
	}
	metrics.AddCleanupDeleted(deleted)
	telemetry.Info("cleanup.completed", map[string]any{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	return deleted, nil
}

// RunEvery runs the cleanup now and then on every tick until ctx ends.
func (c *Cleanup) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Run(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("cleanup.failed", map[string]any{"error": err})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
