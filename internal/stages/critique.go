package stages

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// critiqueSchema constrains the critique stage's JSON output. Generation is
// opaque, so structure is enforced at the boundary instead of trusted.
const critiqueSchema = `{
  "type": "object",
  "required": ["ats_score", "keyword_coverage_score", "clarity_score"],
  "properties": {
    "ats_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "keyword_coverage_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "clarity_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "issues": {"type": "array", "items": {"type": "string"}}
  }
}`

var critiqueSchemaLoader = gojsonschema.NewStringLoader(critiqueSchema)

// ParseCritiqueFindings validates and decodes the critique stage's JSON
// output into structured findings.
func ParseCritiqueFindings(raw string) (*types.CritiqueFindings, error) {
	result, err := gojsonschema.Validate(critiqueSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate critique output: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("critique output failed schema validation: %v", msgs)
	}

	var findings types.CritiqueFindings
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		return nil, fmt.Errorf("failed to decode critique output: %w", err)
	}
	return &findings, nil
}
