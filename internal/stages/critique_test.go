package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCritiqueFindings_Valid(t *testing.T) {
	raw := `{
		"ats_score": 78,
		"keyword_coverage_score": 65,
		"clarity_score": 88,
		"strengths": ["clear impact metrics"],
		"issues": ["missing cloud keywords", "summary too long"]
	}`

	findings, err := ParseCritiqueFindings(raw)
	require.NoError(t, err)
	assert.Equal(t, 78, findings.ATSScore)
	assert.Equal(t, 65, findings.KeywordCoverageScore)
	assert.Equal(t, 88, findings.ClarityScore)
	assert.Len(t, findings.Issues, 2)
	assert.Equal(t, []string{"clear impact metrics"}, findings.Strengths)
}

func TestParseCritiqueFindings_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing scores":    `{"ats_score": 70}`,
		"score over 100":    `{"ats_score": 101, "keyword_coverage_score": 50, "clarity_score": 50}`,
		"negative score":    `{"ats_score": -1, "keyword_coverage_score": 50, "clarity_score": 50}`,
		"non-integer score": `{"ats_score": "high", "keyword_coverage_score": 50, "clarity_score": 50}`,
		"not json":          `scores look fine to me`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCritiqueFindings(raw)
			assert.Error(t, err)
		})
	}
}
