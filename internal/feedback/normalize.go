package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"resume-feedback/internal/shared/util"
)

var (
	fenceRe  = regexp.MustCompile("(?i)```(?:json)?")
	objectRe = regexp.MustCompile(`(?s)\{.*?\}`)
)

// Normalize converts raw model output into a Record. It never fails: text
// without a readable JSON object yields ParseFailure.
func Normalize(text string) Record {
	stripped := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))

	if span := objectRe.FindString(stripped); span != "" {
		if obj, ok := decodeObject(span); ok {
			return fromObject(obj)
		}
	}
	if obj, ok := decodeObject(stripped); ok {
		return fromObject(obj)
	}
	return ParseFailure()
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Trailing content after the object means this was not a single JSON value.
	if dec.More() {
		return nil, false
	}
	return obj, true
}

func fromObject(obj map[string]any) Record {
	checkSchema(obj)
	return Record{
		OverallScore:           toScore(obj["overall_score"]),
		Strengths:              toStrings(obj["strengths"]),
		Weaknesses:             toStrings(obj["weaknesses"]),
		MissingSkills:          toStrings(obj["missing_skills"]),
		ImprovementSuggestions: toStrings(obj["improvement_suggestions"]),
		ATSScore:               toScore(obj["ats_score"]),
	}
}

func toScore(v any) int {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return clamp(int(math.Max(math.Min(math.Round(f), MaxScore), MinScore)))
}

func toStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, item := range t {
			if s := itemString(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := itemString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func itemString(v any) string {
	return strings.TrimSpace(util.CleanText(rawItemString(v)))
}

func rawItemString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return buf.String()
	}
}
