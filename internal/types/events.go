package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags a progress event. Event kinds are an explicit enum with an
// associated payload per variant rather than suffix-encoded step strings, so
// consumers never parse names to recover state.
type EventType string

// Progress event types.
const (
	EventRunStarted     EventType = "run_started"
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventScorecard      EventType = "scorecard_recorded"
	EventGatePassed     EventType = "gate_passed"
	EventGateForced     EventType = "gate_forced"
	EventGateFailed     EventType = "gate_failed"
	EventRoundStarted   EventType = "round_started"
	EventRunPaused      EventType = "run_paused"
	EventRunResumed     EventType = "run_resumed"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
	EventRunCancelled   EventType = "run_cancelled"
)

// ProgressEvent is one immutable entry in a run's append-only event stream.
// Seq is assigned per run and strictly monotonic; replaying the stream from
// the beginning reconstructs the run's stage, round and status at every
// point in time.
type ProgressEvent struct {
	Seq       int64     `json:"seq"`
	RunID     uuid.UUID `json:"run_id"`
	Type      EventType `json:"type"`
	Stage     Stage     `json:"stage,omitempty"`
	Round     int       `json:"round"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Payloads; exactly the one matching Type is set.
	Verdict     *GatekeeperVerdict `json:"verdict,omitempty"`
	Scorecard   *Scorecard         `json:"scorecard,omitempty"`
	Pause       *ManualPause       `json:"pause,omitempty"`
	Target      *TargetParams      `json:"target,omitempty"`
	DocumentRef string             `json:"document_ref,omitempty"`
	ManualMode  bool               `json:"manual_mode,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// IsTerminal reports whether the event ends its run's stream.
func (e ProgressEvent) IsTerminal() bool {
	switch e.Type {
	case EventRunCompleted, EventRunFailed, EventRunCancelled:
		return true
	}
	return false
}
