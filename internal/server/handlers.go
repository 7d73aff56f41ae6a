package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// StartRunRequest is the request body for POST /runs.
type StartRunRequest struct {
	DocumentRef string `json:"document_ref" validate:"required"`
	Role        string `json:"role" validate:"required"`
	Location    string `json:"location,omitempty"`
	Mode        string `json:"mode,omitempty"`
	ManualMode  bool   `json:"manual_mode,omitempty"`
}

// StartRunResponse is the response for POST /runs.
type StartRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// StatusResponse is the response for GET /runs/{id}/status.
type StatusResponse struct {
	RunID        string                    `json:"run_id"`
	DocumentRef  string                    `json:"document_ref"`
	Target       types.TargetParams        `json:"target"`
	Stage        string                    `json:"stage"`
	Round        int                       `json:"round"`
	Status       string                    `json:"status"`
	ManualMode   bool                      `json:"manual_mode"`
	Pause        *types.ManualPause        `json:"pause,omitempty"`
	Scorecard    *types.Scorecard          `json:"scorecard,omitempty"`
	AuditTrail   []types.GatekeeperVerdict `json:"audit_trail,omitempty"`
	ForcedPasses int                       `json:"forced_passes"`
	Failure      string                    `json:"failure,omitempty"`
	CreatedAt    string                    `json:"created_at"`
	EndedAt      string                    `json:"ended_at,omitempty"`
}

func statusResponse(state *types.RunState) StatusResponse {
	resp := StatusResponse{
		RunID:        state.ID.String(),
		DocumentRef:  state.DocumentRef,
		Target:       state.Target,
		Stage:        string(state.Stage),
		Round:        state.Round,
		Status:       string(state.Status),
		ManualMode:   state.ManualMode,
		Pause:        state.Pause,
		Scorecard:    state.LatestScorecard,
		AuditTrail:   state.AuditTrail,
		ForcedPasses: state.ForcedPasses,
		Failure:      state.FailureReason,
		CreatedAt:    state.CreatedAt.Format(time.RFC3339),
	}
	if state.EndedAt != nil {
		resp.EndedAt = state.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// handleStartRun starts a new optimization run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			s.errorResponse(w, http.StatusBadRequest, verrs[0].Field()+" is required")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.manager.Start(r.Context(), pipeline.StartOptions{
		DocumentRef: req.DocumentRef,
		Target: types.TargetParams{
			Role:     req.Role,
			Location: req.Location,
			Mode:     req.Mode,
		},
		ManualMode: req.ManualMode,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, StartRunResponse{
		RunID:  id.String(),
		Status: string(types.RunStatusRunning),
	})
}

// handleListRuns lists recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	states, err := s.manager.ListRuns(r.Context(), 50)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	runs := make([]StatusResponse, 0, len(states))
	for _, state := range states {
		runs = append(runs, statusResponse(state))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunStatus returns a point-in-time snapshot of one run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	state, err := s.manager.Status(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, statusResponse(state))
}

// handleContinueRun resumes a manually paused run.
func (s *Server) handleContinueRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	if err := s.manager.Continue(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"run_id": id.String(),
		"status": string(types.RunStatusRunning),
	})
}

// handleCancelRun requests cancellation of a run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	if err := s.manager.Cancel(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": id.String(),
		"status": "cancellation requested",
	})
}

// handleRunEvents streams a run's progress events over SSE: full replay from
// the first event, then live until the run reaches a terminal state.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	ch, err := s.manager.Subscribe(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			if err := sse.WriteEvent(string(event.Type), event); err != nil {
				return
			}
		}
	}
}

// runID parses the {id} path segment, writing the error response itself.
func (s *Server) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}
