package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus describes the lifecycle state of a pipeline run.
type RunStatus string

// Run statuses. Complete, Failed and Cancelled are terminal; a run in a
// terminal status is never mutated again.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed || s == RunStatusCancelled
}

// TargetParams describes what the run is optimizing for.
type TargetParams struct {
	Role     string `json:"role"`
	Location string `json:"location,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

// ManualPause is the transient checkpoint state present only while a run is
// suspended awaiting an explicit continue. It is cleared (not archived) on
// resume and re-created fresh on each new pause.
type ManualPause struct {
	CompletedStage Stage  `json:"completed_stage"`
	NextStage      Stage  `json:"next_stage"`
	Message        string `json:"message,omitempty"`
}

// RunState is the orchestrator's canonical snapshot of a single run. The
// orchestrator is its sole writer; the event stream is a pure log derived
// from its transitions.
type RunState struct {
	ID              uuid.UUID           `json:"id"`
	DocumentRef     string              `json:"document_ref"`
	Target          TargetParams        `json:"target"`
	Stage           Stage               `json:"stage"`
	Round           int                 `json:"round"`
	Status          RunStatus           `json:"status"`
	ManualMode      bool                `json:"manual_mode"`
	Pause           *ManualPause        `json:"pause,omitempty"`
	LatestScorecard *Scorecard          `json:"latest_scorecard,omitempty"`
	AuditTrail      []GatekeeperVerdict `json:"audit_trail"`
	ForcedPasses    int                 `json:"forced_passes"`
	LastSeq         int64               `json:"last_seq"`
	FailureReason   string              `json:"failure_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	EndedAt         *time.Time          `json:"ended_at,omitempty"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the orchestrator's mutable state.
func (r *RunState) Clone() *RunState {
	cp := *r
	if r.Pause != nil {
		pause := *r.Pause
		cp.Pause = &pause
	}
	if r.LatestScorecard != nil {
		sc := *r.LatestScorecard
		cp.LatestScorecard = &sc
	}
	if r.AuditTrail != nil {
		cp.AuditTrail = make([]GatekeeperVerdict, len(r.AuditTrail))
		copy(cp.AuditTrail, r.AuditTrail)
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
