package gatekeeper

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// verdictSchema constrains the gatekeeper's JSON output.
const verdictSchema = `{
  "type": "object",
  "required": ["passed", "forced"],
  "properties": {
    "passed": {"type": "boolean"},
    "forced": {"type": "boolean"},
    "blocking_issues": {"type": "array", "items": {"type": "string"}},
    "next_stage": {"type": "string", "enum": ["research", "write", "critique", "design", ""]}
  }
}`

var verdictSchemaLoader = gojsonschema.NewStringLoader(verdictSchema)

type rawVerdict struct {
	Passed         bool     `json:"passed"`
	Forced         bool     `json:"forced"`
	BlockingIssues []string `json:"blocking_issues"`
	NextStage      string   `json:"next_stage"`
}

// ParseVerdict validates and decodes a verdict for the given stage. A
// verdict claiming forced without passed violates the verdict invariant and
// is rejected as invalid output, which makes the audit retryable rather
// than silently recorded.
func ParseVerdict(stage types.Stage, raw string) (*types.GatekeeperVerdict, error) {
	result, err := gojsonschema.Validate(verdictSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate verdict: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("verdict failed schema validation: %v", msgs)
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(raw), &rv); err != nil {
		return nil, fmt.Errorf("failed to decode verdict: %w", err)
	}

	if rv.Forced && !rv.Passed {
		return nil, fmt.Errorf("invalid verdict: forced=true requires passed=true")
	}

	verdict := &types.GatekeeperVerdict{
		Stage:          stage,
		Passed:         rv.Passed,
		Forced:         rv.Forced,
		BlockingIssues: rv.BlockingIssues,
	}

	if rv.NextStage != "" {
		next, err := types.ParseStage(rv.NextStage)
		if err != nil {
			return nil, fmt.Errorf("invalid verdict next_stage: %w", err)
		}
		verdict.NextStage = next
	}

	return verdict, nil
}
