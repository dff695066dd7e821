package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-feedback/internal/feedback"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const resumeColumns = `id, user_id, file_name, storage_key, size_bytes, mime_type, extracted_text, status,
       overall_score, ats_score, strengths, weaknesses, missing_skills, improvement_suggestions,
       feedback, attempts, created_at, updated_at, analyzed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(row rowScanner) (Resume, error) {
	var (
		res          Resume
		overall      sql.NullInt64
		ats          sql.NullInt64
		strengths    sql.NullString
		weaknesses   sql.NullString
		missing      sql.NullString
		suggestions  sql.NullString
		feedbackJSON sql.NullString
		analyzedAt   sql.NullTime
	)
	if err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.FileName,
		&res.StorageKey,
		&res.SizeBytes,
		&res.MimeType,
		&res.ExtractedText,
		&res.Status,
		&overall,
		&ats,
		&strengths,
		&weaknesses,
		&missing,
		&suggestions,
		&feedbackJSON,
		&res.Attempts,
		&res.CreatedAt,
		&res.UpdatedAt,
		&analyzedAt,
	); err != nil {
		return Resume{}, err
	}
	if overall.Valid {
		v := int(overall.Int64)
		res.OverallScore = &v
	}
	if ats.Valid {
		v := int(ats.Int64)
		res.ATSScore = &v
	}
	var err error
	if res.Strengths, err = decodeList(strengths); err != nil {
		return Resume{}, fmt.Errorf("decode strengths: %w", err)
	}
	if res.Weaknesses, err = decodeList(weaknesses); err != nil {
		return Resume{}, fmt.Errorf("decode weaknesses: %w", err)
	}
	if res.MissingSkills, err = decodeList(missing); err != nil {
		return Resume{}, fmt.Errorf("decode missing_skills: %w", err)
	}
	if res.ImprovementSuggestions, err = decodeList(suggestions); err != nil {
		return Resume{}, fmt.Errorf("decode improvement_suggestions: %w", err)
	}
	if feedbackJSON.Valid && feedbackJSON.String != "" {
		var rec feedback.Record
		if err := json.Unmarshal([]byte(feedbackJSON.String), &rec); err != nil {
			return Resume{}, fmt.Errorf("decode feedback: %w", err)
		}
		res.Feedback = &rec
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		res.AnalyzedAt = &t
	}
	return res, nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	out := []string{}
	if !raw.Valid || raw.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

func (r *PGRepo) Create(ctx context.Context, res Resume) error {
	const query = `
INSERT INTO resumes (id, user_id, file_name, storage_key, size_bytes, mime_type, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	status := res.Status
	if status == "" {
		status = StatusPending
	}
	updated := res.UpdatedAt
	if updated.IsZero() {
		updated = res.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx, query,
		res.ID,
		res.UserID,
		res.FileName,
		res.StorageKey,
		res.SizeBytes,
		res.MimeType,
		status,
		res.CreatedAt,
		updated,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	query := `SELECT ` + resumeColumns + ` FROM resumes WHERE id = $1`
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return res, err
}

func (r *PGRepo) GetForUser(ctx context.Context, userID, id string) (Resume, error) {
	query := `SELECT ` + resumeColumns + ` FROM resumes WHERE id = $1 AND user_id = $2`
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return res, err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + resumeColumns + ` FROM resumes
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	return r.queryList(ctx, query, userID, limit, offset)
}

func (r *PGRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Resume, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + resumeColumns + ` FROM resumes
WHERE created_at < $1
ORDER BY created_at ASC
LIMIT $2`
	return r.queryList(ctx, query, cutoff, limit)
}

func (r *PGRepo) queryList(ctx context.Context, query string, args ...any) ([]Resume, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Resume{}
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	const query = `
UPDATE resumes
SET status = $1,
    attempts = attempts + CASE WHEN $1 = 'processing' THEN 1 ELSE 0 END,
    updated_at = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, status, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) SetExtractedText(ctx context.Context, id, text string) error {
	const query = `
UPDATE resumes
SET extracted_text = $1
WHERE id = $2 AND extracted_text = ''`
	_, err := r.DB.ExecContext(ctx, query, text, id)
	return err
}

func (r *PGRepo) SaveFeedback(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error {
	return r.writeFeedback(ctx, id, rec, StatusCompleted, analyzedAt)
}

func (r *PGRepo) MarkFailed(ctx context.Context, id string, rec feedback.Record, analyzedAt time.Time) error {
	return r.writeFeedback(ctx, id, rec, StatusFailed, analyzedAt)
}

func (r *PGRepo) writeFeedback(ctx context.Context, id string, rec feedback.Record, status string, analyzedAt time.Time) error {
	rec = rec.Normalized()
	strengths, err := encodeList(rec.Strengths)
	if err != nil {
		return err
	}
	weaknesses, err := encodeList(rec.Weaknesses)
	if err != nil {
		return err
	}
	missing, err := encodeList(rec.MissingSkills)
	if err != nil {
		return err
	}
	suggestions, err := encodeList(rec.ImprovementSuggestions)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	const query = `
UPDATE resumes
SET status = $1,
    overall_score = $2,
    ats_score = $3,
    strengths = $4::jsonb,
    weaknesses = $5::jsonb,
    missing_skills = $6::jsonb,
    improvement_suggestions = $7::jsonb,
    feedback = $8::jsonb,
    analyzed_at = $9,
    updated_at = $9
WHERE id = $10`
	res, err := r.DB.ExecContext(ctx, query,
		status,
		rec.OverallScore,
		rec.ATSScore,
		strengths,
		weaknesses,
		missing,
		suggestions,
		string(payload),
		analyzedAt.UTC(),
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) ResetForReanalysis(ctx context.Context, userID, id string, at time.Time) (Resume, error) {
	query := `
UPDATE resumes
SET status = 'pending',
    overall_score = NULL,
    ats_score = NULL,
    strengths = '[]'::jsonb,
    weaknesses = '[]'::jsonb,
    missing_skills = '[]'::jsonb,
    improvement_suggestions = '[]'::jsonb,
    feedback = NULL,
    analyzed_at = NULL,
    attempts = 0,
    updated_at = $1
WHERE id = $2 AND user_id = $3 AND status IN ('completed', 'failed')
RETURNING ` + resumeColumns
	res, err := scanResume(r.DB.QueryRowContext(ctx, query, at.UTC(), id, userID))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Resume{}, err
	}
	// Nothing updated: distinguish a missing record from one still in flight.
	if _, getErr := r.GetForUser(ctx, userID, id); getErr != nil {
		return Resume{}, getErr
	}
	return Resume{}, ErrAnalysisInFlight
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
