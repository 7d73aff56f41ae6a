package types

import "fmt"

// Stage identifies one phase of the optimization pipeline. The pipeline runs
// stages in a fixed order; write and critique may repeat across refinement
// rounds before design runs.
type Stage string

// Pipeline stages in execution order.
const (
	StageResearch Stage = "research"
	StageWrite    Stage = "write"
	StageCritique Stage = "critique"
	StageDesign   Stage = "design"
)

// AllStages lists the stages in their canonical execution order.
var AllStages = []Stage{StageResearch, StageWrite, StageCritique, StageDesign}

// IsValid reports whether s is a known pipeline stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageResearch, StageWrite, StageCritique, StageDesign:
		return true
	}
	return false
}

// Next returns the stage that follows s in the canonical order. The boolean
// is false when s is the final stage.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageResearch:
		return StageWrite, true
	case StageWrite:
		return StageCritique, true
	case StageCritique:
		return StageDesign, true
	default:
		return "", false
	}
}

// Index returns the position of s in the canonical order, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, stage := range AllStages {
		if stage == s {
			return i
		}
	}
	return -1
}

// ParseStage converts a string into a Stage, rejecting unknown values.
func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown stage: %q", raw)
	}
	return s, nil
}
