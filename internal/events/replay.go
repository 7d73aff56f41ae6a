package events

import (
	"github.com/google/uuid"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Reduce rebuilds a run's canonical state by replaying its event stream from
// the start. The orchestrator's live snapshot and the reduction of its
// emitted events agree at every transition boundary; this is the crash
// recovery path, so no state may exist that the stream cannot reproduce.
//
// Replays are idempotent to interpret: reducing a prefix and then reducing
// the full stream yields the same result as reducing the full stream once.
func Reduce(runID uuid.UUID, evts []types.ProgressEvent) *types.RunState {
	state := &types.RunState{
		ID:     runID,
		Stage:  types.StageResearch,
		Round:  1,
		Status: types.RunStatusRunning,
	}

	for _, e := range evts {
		if e.Seq > state.LastSeq {
			state.LastSeq = e.Seq
		}

		switch e.Type {
		case types.EventRunStarted:
			state.DocumentRef = e.DocumentRef
			state.ManualMode = e.ManualMode
			if e.Target != nil {
				state.Target = *e.Target
			}
			state.CreatedAt = e.Timestamp

		case types.EventStageStarted:
			state.Stage = e.Stage
			state.Round = e.Round
			state.Status = types.RunStatusRunning

		case types.EventStageCompleted:
			// Stage output is recorded as an artifact; the snapshot does
			// not change until the gate rules on the boundary.

		case types.EventScorecard:
			if e.Scorecard != nil {
				sc := *e.Scorecard
				state.LatestScorecard = &sc
			}

		case types.EventGatePassed, types.EventGateForced, types.EventGateFailed:
			if e.Verdict != nil {
				state.AuditTrail = append(state.AuditTrail, *e.Verdict)
				if e.Verdict.Forced {
					state.ForcedPasses++
				}
			}

		case types.EventRoundStarted:
			state.Round = e.Round
			state.Stage = e.Stage

		case types.EventRunPaused:
			state.Status = types.RunStatusPaused
			if e.Pause != nil {
				pause := *e.Pause
				state.Pause = &pause
				state.Stage = pause.NextStage
			}

		case types.EventRunResumed:
			state.Status = types.RunStatusRunning
			state.Pause = nil
			state.Stage = e.Stage
			state.Round = e.Round

		case types.EventRunCompleted:
			state.Status = types.RunStatusComplete
			ts := e.Timestamp
			state.EndedAt = &ts

		case types.EventRunFailed:
			state.Status = types.RunStatusFailed
			state.FailureReason = e.Error
			ts := e.Timestamp
			state.EndedAt = &ts

		case types.EventRunCancelled:
			state.Status = types.RunStatusCancelled
			ts := e.Timestamp
			state.EndedAt = &ts
		}
	}

	return state
}
