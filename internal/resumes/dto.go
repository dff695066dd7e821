package resumes

import (
	"time"

	"resume-feedback/internal/feedback"
)

// ResumeResponse is the outward-facing representation of a résumé.
type ResumeResponse struct {
	ID                     string           `json:"id"`
	FileName               string           `json:"fileName"`
	SizeBytes              int64            `json:"sizeBytes"`
	MimeType               string           `json:"mimeType"`
	Status                 string           `json:"status"`
	OverallScore           *int             `json:"overallScore"`
	ATSScore               *int             `json:"atsScore"`
	Strengths              []string         `json:"strengths"`
	Weaknesses             []string         `json:"weaknesses"`
	MissingSkills          []string         `json:"missingSkills"`
	ImprovementSuggestions []string         `json:"improvementSuggestions"`
	Feedback               *feedback.Record `json:"feedback,omitempty"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
	AnalyzedAt             *time.Time       `json:"analyzedAt"`
}

func toResponse(r Resume) ResumeResponse {
	return ResumeResponse{
		ID:                     r.ID,
		FileName:               r.FileName,
		SizeBytes:              r.SizeBytes,
		MimeType:               r.MimeType,
		Status:                 r.Status,
		OverallScore:           r.OverallScore,
		ATSScore:               r.ATSScore,
		Strengths:              nonNil(r.Strengths),
		Weaknesses:             nonNil(r.Weaknesses),
		MissingSkills:          nonNil(r.MissingSkills),
		ImprovementSuggestions: nonNil(r.ImprovementSuggestions),
		Feedback:               r.Feedback,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		AnalyzedAt:             r.AnalyzedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
