package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-optimizer/internal/types"
)

func TestPrintRunHeader(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunHeader("resumes/jordan.md", types.TargetParams{
		Role:     "Platform Engineer",
		Location: "Berlin",
		Mode:     "hybrid",
	}, true)
	output := buf.String()

	assert.Contains(t, output, "OPTIMIZATION RUN")
	assert.Contains(t, output, "resumes/jordan.md")
	assert.Contains(t, output, "Platform Engineer")
	assert.Contains(t, output, "Berlin")
	assert.Contains(t, output, "Pausing at every stage boundary")
}

func TestPrintScorecard(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScorecard(2, &types.Scorecard{Overall: 88, ATS: 90, KeywordCoverage: 85, Clarity: 89})
	output := buf.String()

	assert.Contains(t, output, "SCORECARD (round 2)")
	assert.Contains(t, output, "88")
	assert.Contains(t, output, "Keyword coverage")
}

func TestPrintScorecard_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScorecard(1, nil)

	assert.Empty(t, buf.String())
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintVerdict(&types.GatekeeperVerdict{
		Stage:          types.StageWrite,
		Passed:         true,
		Forced:         true,
		BlockingIssues: []string{"summary too long", "missing keywords"},
	})
	output := buf.String()

	assert.Contains(t, output, "GATE: WRITE")
	assert.Contains(t, output, "FORCED PASS")
	assert.Contains(t, output, "summary too long")
}

func TestPrintVerdict_TruncatesIssues(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	issues := []string{"one", "two", "three", "four", "five", "six", "seven"}
	p.PrintVerdict(&types.GatekeeperVerdict{Stage: types.StageCritique, BlockingIssues: issues})
	output := buf.String()

	assert.Contains(t, output, "FAIL")
	assert.Contains(t, output, "and 2 more")
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEvent(types.ProgressEvent{
		Type:      types.EventStageStarted,
		Message:   "research stage started",
		Timestamp: time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
	})

	assert.Contains(t, buf.String(), "[10:30:00] research stage started")
}

func TestPrintRunResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunResult(&types.RunState{
		Status:          types.RunStatusComplete,
		Round:           2,
		LatestScorecard: &types.Scorecard{Overall: 91},
	})
	output := buf.String()

	assert.Contains(t, output, "RUN FINISHED")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "91")
}
