package types

// Scorecard is the multi-dimensional quality score produced after each
// critique round. All values are integers in [0, 100]. A new round's
// scorecard supersedes the previous one; they are never merged.
type Scorecard struct {
	Overall         int `json:"overall_score"`
	ATS             int `json:"ats_score"`
	KeywordCoverage int `json:"keyword_coverage_score"`
	Clarity         int `json:"clarity_score"`
}

// GatekeeperVerdict is the outcome of one gatekeeper audit at a stage
// boundary. Forced is only ever true together with Passed: a forced pass
// overrides blocking issues to keep the pipeline moving, but it is always a
// form of pass, never a fail with an override.
type GatekeeperVerdict struct {
	Stage          Stage    `json:"stage"`
	Passed         bool     `json:"passed"`
	Forced         bool     `json:"forced"`
	BlockingIssues []string `json:"blocking_issues,omitempty"`
	NextStage      Stage    `json:"next_stage,omitempty"`
}

// ResolveNext returns the stage a passing verdict advances to: the verdict's
// explicit NextStage when set (the verdict is authoritative and may redirect,
// e.g. back to write for another refinement round), otherwise the next stage
// in canonical order. The boolean is false when the pipeline is finished.
func (v *GatekeeperVerdict) ResolveNext() (Stage, bool) {
	if v.NextStage != "" {
		return v.NextStage, true
	}
	return v.Stage.Next()
}
