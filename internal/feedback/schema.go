package feedback

import (
	_ "embed"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"resume-feedback/internal/shared/telemetry"
)

//go:embed schema.json
var schemaJSON string

// SchemaJSON is the JSON schema a well-formed model reply follows.
func SchemaJSON() string { return schemaJSON }

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
)

func loadSchema() *gojsonschema.Schema {
	schemaOnce.Do(func() {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			telemetry.Error("feedback.schema_invalid", map[string]any{"error": err.Error()})
			return
		}
		schema = s
	})
	return schema
}

// SchemaViolations lists the ways obj departs from the reply schema.
func SchemaViolations(obj map[string]any) []string {
	s := loadSchema()
	if s == nil {
		return nil
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return []string{err.Error()}
	}
	if res.Valid() {
		return nil
	}
	out := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out
}

// checkSchema only logs; coercion repairs what it can.
func checkSchema(obj map[string]any) {
	if violations := SchemaViolations(obj); len(violations) > 0 {
		telemetry.Warn("feedback.schema_mismatch", map[string]any{"violations": violations})
	}
}
