package types

// StageOutput is the result of executing one pipeline stage. Content is the
// opaque generated text for the stage; Critique is populated only for the
// critique stage.
type StageOutput struct {
	Stage    Stage             `json:"stage"`
	Content  string            `json:"content"`
	Summary  string            `json:"summary,omitempty"`
	Critique *CritiqueFindings `json:"critique,omitempty"`
}

// CritiqueFindings is the structured portion of a critique stage's output:
// the three sub-scores the scorecard evaluator consumes, plus the reviewer's
// written findings.
type CritiqueFindings struct {
	ATSScore             int      `json:"ats_score"`
	KeywordCoverageScore int      `json:"keyword_coverage_score"`
	ClarityScore         int      `json:"clarity_score"`
	Strengths            []string `json:"strengths,omitempty"`
	Issues               []string `json:"issues,omitempty"`
}

// RunContext carries everything a stage or gatekeeper needs about the run it
// is operating on: the source document, the optimization target, the current
// round, and the outputs of stages that already completed.
type RunContext struct {
	DocumentRef  string                 `json:"document_ref"`
	Target       TargetParams           `json:"target"`
	Round        int                    `json:"round"`
	PriorOutputs map[Stage]*StageOutput `json:"prior_outputs,omitempty"`
}

// Output returns the recorded output for a stage, or nil if the stage has
// not produced one yet.
func (c *RunContext) Output(stage Stage) *StageOutput {
	if c.PriorOutputs == nil {
		return nil
	}
	return c.PriorOutputs[stage]
}
