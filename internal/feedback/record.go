// Package feedback defines the structured résumé feedback record and the
// normalizer that turns free-form model output into one.
package feedback

const (
	MinScore = 0
	MaxScore = 100
	// ParseFailureScore is reported when a reply cannot be read at all.
	ParseFailureScore = 50
)

// Record is the structured feedback for one résumé.
type Record struct {
	OverallScore           int      `json:"overall_score"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	MissingSkills          []string `json:"missing_skills"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	ATSScore               int      `json:"ats_score"`

	// Placeholder marks records produced without a usable model answer.
	Placeholder bool `json:"-"`
}

// Placeholder builds a score-0 record carrying diagnostic strings.
func Placeholder(strengths, weaknesses, suggestions []string) Record {
	return Record{
		Strengths:              nonNil(strengths),
		Weaknesses:             nonNil(weaknesses),
		MissingSkills:          []string{},
		ImprovementSuggestions: nonNil(suggestions),
		Placeholder:            true,
	}
}

// ParseFailure is returned when a reply contains no readable JSON object.
func ParseFailure() Record {
	return Record{
		OverallScore:           ParseFailureScore,
		Strengths:              []string{"Could not parse AI response"},
		Weaknesses:             []string{"Response format was unexpected"},
		MissingSkills:          []string{},
		ImprovementSuggestions: []string{"Please try uploading the resume again"},
		ATSScore:               ParseFailureScore,
		Placeholder:            true,
	}
}

// Failed is the record stored when an analysis job gives up.
func Failed(diagnostic string) Record {
	return Placeholder(nil, []string{diagnostic}, nil)
}

// Normalized returns a copy with clamped scores and non-nil lists.
func (r Record) Normalized() Record {
	r.OverallScore = clamp(r.OverallScore)
	r.ATSScore = clamp(r.ATSScore)
	r.Strengths = nonNil(r.Strengths)
	r.Weaknesses = nonNil(r.Weaknesses)
	r.MissingSkills = nonNil(r.MissingSkills)
	r.ImprovementSuggestions = nonNil(r.ImprovementSuggestions)
	return r
}

func clamp(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
