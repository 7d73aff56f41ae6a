package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-optimizer/internal/types"
)

func runStream(runID uuid.UUID) []types.ProgressEvent {
	ts := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	target := types.TargetParams{Role: "Platform Engineer"}
	seq := int64(0)
	next := func(typ types.EventType, mutate func(*types.ProgressEvent)) types.ProgressEvent {
		seq++
		e := types.ProgressEvent{Seq: seq, RunID: runID, Type: typ, Timestamp: ts.Add(time.Duration(seq) * time.Second)}
		if mutate != nil {
			mutate(&e)
		}
		return e
	}

	return []types.ProgressEvent{
		next(types.EventRunStarted, func(e *types.ProgressEvent) {
			e.DocumentRef = "resumes/jordan.md"
			e.Target = &target
			e.Round = 1
		}),
		next(types.EventStageStarted, func(e *types.ProgressEvent) {
			e.Stage = types.StageResearch
			e.Round = 1
		}),
		next(types.EventStageCompleted, func(e *types.ProgressEvent) {
			e.Stage = types.StageResearch
			e.Round = 1
		}),
		next(types.EventGatePassed, func(e *types.ProgressEvent) {
			e.Stage = types.StageResearch
			e.Round = 1
			e.Verdict = &types.GatekeeperVerdict{Stage: types.StageResearch, Passed: true}
		}),
		next(types.EventStageStarted, func(e *types.ProgressEvent) {
			e.Stage = types.StageWrite
			e.Round = 1
		}),
	}
}

func TestReduceMidRun(t *testing.T) {
	runID := uuid.New()
	state := Reduce(runID, runStream(runID))

	assert.Equal(t, runID, state.ID)
	assert.Equal(t, "resumes/jordan.md", state.DocumentRef)
	assert.Equal(t, "Platform Engineer", state.Target.Role)
	assert.Equal(t, types.StageWrite, state.Stage)
	assert.Equal(t, 1, state.Round)
	assert.Equal(t, types.RunStatusRunning, state.Status)
	assert.Equal(t, int64(5), state.LastSeq)
	require.Len(t, state.AuditTrail, 1)
	assert.True(t, state.AuditTrail[0].Passed)
}

func TestReduceScorecardAndRounds(t *testing.T) {
	runID := uuid.New()
	evts := runStream(runID)

	evts = append(evts,
		types.ProgressEvent{Seq: 6, RunID: runID, Type: types.EventScorecard, Stage: types.StageCritique, Round: 1,
			Scorecard: &types.Scorecard{Overall: 70, ATS: 70, KeywordCoverage: 70, Clarity: 70}},
		types.ProgressEvent{Seq: 7, RunID: runID, Type: types.EventGatePassed, Stage: types.StageCritique, Round: 1,
			Verdict: &types.GatekeeperVerdict{Stage: types.StageCritique, Passed: true, NextStage: types.StageWrite}},
		types.ProgressEvent{Seq: 8, RunID: runID, Type: types.EventRoundStarted, Stage: types.StageWrite, Round: 2},
		types.ProgressEvent{Seq: 9, RunID: runID, Type: types.EventScorecard, Stage: types.StageCritique, Round: 2,
			Scorecard: &types.Scorecard{Overall: 92, ATS: 92, KeywordCoverage: 92, Clarity: 92}},
	)

	state := Reduce(runID, evts)
	assert.Equal(t, 2, state.Round)
	assert.Equal(t, types.StageWrite, state.Stage)
	// The later scorecard supersedes the earlier one.
	require.NotNil(t, state.LatestScorecard)
	assert.Equal(t, 92, state.LatestScorecard.Overall)
}

func TestReduceForcedGateCountsTowardBudget(t *testing.T) {
	runID := uuid.New()
	evts := []types.ProgressEvent{
		{Seq: 1, RunID: runID, Type: types.EventGateForced, Stage: types.StageWrite, Round: 1,
			Verdict: &types.GatekeeperVerdict{Stage: types.StageWrite, Passed: true, Forced: true, BlockingIssues: []string{"x"}}},
		{Seq: 2, RunID: runID, Type: types.EventGatePassed, Stage: types.StageCritique, Round: 1,
			Verdict: &types.GatekeeperVerdict{Stage: types.StageCritique, Passed: true}},
	}

	state := Reduce(runID, evts)
	assert.Equal(t, 1, state.ForcedPasses)
	assert.Len(t, state.AuditTrail, 2)
}

func TestReducePauseAndResume(t *testing.T) {
	runID := uuid.New()
	pause := &types.ManualPause{CompletedStage: types.StageResearch, NextStage: types.StageWrite}
	evts := append(runStream(runID),
		types.ProgressEvent{Seq: 6, RunID: runID, Type: types.EventRunPaused, Stage: types.StageWrite, Round: 1, Pause: pause},
	)

	state := Reduce(runID, evts)
	assert.Equal(t, types.RunStatusPaused, state.Status)
	require.NotNil(t, state.Pause)
	assert.Equal(t, types.StageWrite, state.Pause.NextStage)
	assert.Equal(t, types.StageWrite, state.Stage)

	evts = append(evts,
		types.ProgressEvent{Seq: 7, RunID: runID, Type: types.EventRunResumed, Stage: types.StageWrite, Round: 1},
	)
	state = Reduce(runID, evts)
	assert.Equal(t, types.RunStatusRunning, state.Status)
	assert.Nil(t, state.Pause)
}

func TestReduceTerminalEvents(t *testing.T) {
	runID := uuid.New()

	completed := append(runStream(runID),
		types.ProgressEvent{Seq: 6, RunID: runID, Type: types.EventRunCompleted, Round: 1,
			Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
	)
	state := Reduce(runID, completed)
	assert.Equal(t, types.RunStatusComplete, state.Status)
	require.NotNil(t, state.EndedAt)

	failed := append(runStream(runID),
		types.ProgressEvent{Seq: 6, RunID: runID, Type: types.EventRunFailed, Round: 1, Error: "gate exhausted"},
	)
	state = Reduce(runID, failed)
	assert.Equal(t, types.RunStatusFailed, state.Status)
	assert.Equal(t, "gate exhausted", state.FailureReason)

	cancelled := append(runStream(runID),
		types.ProgressEvent{Seq: 6, RunID: runID, Type: types.EventRunCancelled, Round: 1},
	)
	state = Reduce(runID, cancelled)
	assert.Equal(t, types.RunStatusCancelled, state.Status)
}

func TestReducePrefixConsistency(t *testing.T) {
	// A prefix of the stream reduces to the state the run had at that point.
	runID := uuid.New()
	full := runStream(runID)

	wholeRun := Reduce(runID, full)
	prefix := Reduce(runID, full[:3])

	assert.Equal(t, types.StageResearch, prefix.Stage)
	assert.Equal(t, types.StageWrite, wholeRun.Stage)
	assert.Equal(t, prefix.DocumentRef, wholeRun.DocumentRef)
}
