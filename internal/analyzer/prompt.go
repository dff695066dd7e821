package analyzer

import (
	"fmt"

	"resume-feedback/internal/feedback"
)

const (
	// MaxPromptChars bounds the résumé text embedded in the prompt.
	MaxPromptChars = 4000

	systemPrompt = "You are an experienced technical recruiter and résumé reviewer. " +
		"Respond with a single valid JSON object and nothing else: no prose, no markdown."
)

const promptTemplate = `Review the résumé below and return feedback as JSON with exactly these fields:

- "overall_score": integer 0-100, overall quality of the résumé
- "strengths": list of 3-5 short strings
- "weaknesses": list of 3-5 short strings
- "missing_skills": list of skills a reviewer would expect but cannot find
- "improvement_suggestions": list of 5-7 concrete, actionable suggestions
- "ats_score": integer 0-100, how well the résumé parses in applicant tracking systems

If you cannot analyse the résumé, provide default scores of 50.

JSON schema:
%s

Résumé:
"""
%s
"""`

// BuildPrompt embeds text, truncated to MaxPromptChars runes, into the
// analysis prompt.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, feedback.SchemaJSON(), feedback.Truncate(text, MaxPromptChars))
}
