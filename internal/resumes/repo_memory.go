package resumes

import (
	"context"
	"sort"
	"sync"
	"time"

	"resume-feedback/internal/feedback"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Resume
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Resume)}
}

func (r *MemoryRepo) Create(ctx context.Context, res Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.ID == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[res.ID]; exists {
		return ErrInvalidInput
	}
	r.data[res.ID] = res.clone()
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.data[id]
	if !ok {
		return Resume{}, ErrNotFound
	}
	return res.clone(), nil
}

func (r *MemoryRepo) GetForUser(ctx context.Context, userID, id string) (Resume, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	if res.UserID != userID {
		return Resume{}, ErrNotFound
	}
	return res, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	r.mu.RLock()
	out := make([]Resume, 0)
	for _, res := range r.data {
		if res.UserID == userID {
			out = append(out, res.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Resume{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*Resume) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&res); err != nil {
		return err
	}
	r.data[id] = res
	return nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	return r.update(ctx, id, func(res *Resume) error {
		res.Status = status
		res.UpdatedAt = at.UTC()
		if status == StatusProcessing {
			res.Attempts++
		}
		return nil
	})
}

func (r *MemoryRepo) SetExtractedText(ctx context.Context, id, text string) error {
	return r.update(ctx, id, func(res *Resume) error {
		if res.ExtractedText == "" {
			res.ExtractedText = text
		}
		return nil
	})
}

func (r *MemoryRepo) SaveFeedback(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error {
	return r.update(ctx, id, func(res *Resume) error {
		res.applyFeedback(rec, StatusCompleted, analyzedAt)
		return nil
	})
}

func (r *MemoryRepo) MarkFailed(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error {
	return r.update(ctx, id, func(res *Resume) error {
		res.applyFeedback(rec, StatusFailed, analyzedAt)
		return nil
	})
}

func (r *MemoryRepo) ResetForReanalysis(ctx context.Context, userID, id string, at time.Time) (Resume, error) {
	var out Resume
	err := r.update(ctx, id, func(res *Resume) error {
		if res.UserID != userID {
			return ErrNotFound
		}
		if !res.Terminal() {
			return ErrAnalysisInFlight
		}
		res.clearAnalysis()
		res.Status = StatusPending
		res.Attempts = 0
		res.UpdatedAt = at.UTC()
		out = res.clone()
		return nil
	})
	return out, err
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *MemoryRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Resume, 0)
	for _, res := range r.data {
		if res.CreatedAt.Before(cutoff) {
			out = append(out, res.clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
