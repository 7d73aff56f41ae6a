// Package scorecard computes the quality scorecard from critique findings.
package scorecard

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Weights for the overall score. These are the single source of truth:
// every overall score in the system is computed by ComputeOverall.
const (
	atsWeight     = 0.40
	keywordWeight = 0.35
	clarityWeight = 0.25
)

// ComputeOverall derives the overall score from the three sub-scores as a
// fixed weighted average, rounded to the nearest integer.
func ComputeOverall(ats, keyword, clarity int) int {
	weighted := atsWeight*float64(ats) + keywordWeight*float64(keyword) + clarityWeight*float64(clarity)
	return int(weighted + 0.5)
}

// Evaluate builds a Scorecard from critique findings. It is deterministic:
// the same findings always produce the same scorecard, so round-to-round
// comparisons used for loop-exit decisions are meaningful.
func Evaluate(findings *types.CritiqueFindings) (*types.Scorecard, error) {
	if findings == nil {
		return nil, fmt.Errorf("critique findings are required")
	}
	for name, v := range map[string]int{
		"ats_score":              findings.ATSScore,
		"keyword_coverage_score": findings.KeywordCoverageScore,
		"clarity_score":          findings.ClarityScore,
	} {
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("%s out of range [0,100]: %d", name, v)
		}
	}

	return &types.Scorecard{
		Overall:         ComputeOverall(findings.ATSScore, findings.KeywordCoverageScore, findings.ClarityScore),
		ATS:             findings.ATSScore,
		KeywordCoverage: findings.KeywordCoverageScore,
		Clarity:         findings.ClarityScore,
	}, nil
}
