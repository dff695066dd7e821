package resumes

import (
	"time"

	"resume-feedback/internal/feedback"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Resume is an uploaded résumé and its most recent analysis.
type Resume struct {
	ID            string
	UserID        string
	FileName      string
	StorageKey    string
	SizeBytes     int64
	MimeType      string
	ExtractedText string
	Status        string

	OverallScore           *int
	ATSScore               *int
	Strengths              []string
	Weaknesses             []string
	MissingSkills          []string
	ImprovementSuggestions []string
	Feedback               *feedback.Record
	Attempts               int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	AnalyzedAt *time.Time
}

// Terminal reports whether no analysis is pending or running.
func (r Resume) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// applyFeedback copies rec into the flattened analysis fields.
func (r *Resume) applyFeedback(rec feedback.Record, status string, analyzedAt time.Time) {
	rec = rec.Normalized()
	overall, ats := rec.OverallScore, rec.ATSScore
	r.OverallScore = &overall
	r.ATSScore = &ats
	r.Strengths = cloneStrings(rec.Strengths)
	r.Weaknesses = cloneStrings(rec.Weaknesses)
	r.MissingSkills = cloneStrings(rec.MissingSkills)
	r.ImprovementSuggestions = cloneStrings(rec.ImprovementSuggestions)
	r.Feedback = &rec
	r.Status = status
	at := analyzedAt.UTC()
	r.AnalyzedAt = &at
	r.UpdatedAt = at
}

func (r *Resume) clearAnalysis() {
	r.OverallScore = nil
	r.ATSScore = nil
	r.Strengths = []string{}
	r.Weaknesses = []string{}
	r.MissingSkills = []string{}
	r.ImprovementSuggestions = []string{}
	r.Feedback = nil
	r.AnalyzedAt = nil
}

func (r Resume) clone() Resume {
	out := r
	out.Strengths = cloneStrings(r.Strengths)
	out.Weaknesses = cloneStrings(r.Weaknesses)
	out.MissingSkills = cloneStrings(r.MissingSkills)
	out.ImprovementSuggestions = cloneStrings(r.ImprovementSuggestions)
	if r.OverallScore != nil {
		v := *r.OverallScore
		out.OverallScore = &v
	}
	if r.ATSScore != nil {
		v := *r.ATSScore
		out.ATSScore = &v
	}
	if r.AnalyzedAt != nil {
		v := *r.AnalyzedAt
		out.AnalyzedAt = &v
	}
	if r.Feedback != nil {
		fb := *r.Feedback
		fb.Strengths = cloneStrings(fb.Strengths)
		fb.Weaknesses = cloneStrings(fb.Weaknesses)
		fb.MissingSkills = cloneStrings(fb.MissingSkills)
		fb.ImprovementSuggestions = cloneStrings(fb.ImprovementSuggestions)
		out.Feedback = &fb
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
