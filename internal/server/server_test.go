package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// stubExecutor returns canned outputs instantly.
type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, stage types.Stage, _ *types.RunContext) (*types.StageOutput, error) {
	out := &types.StageOutput{Stage: stage, Content: fmt.Sprintf("%s content", stage)}
	if stage == types.StageCritique {
		out.Critique = &types.CritiqueFindings{ATSScore: 95, KeywordCoverageScore: 95, ClarityScore: 95}
	}
	return out, nil
}

// stubAuditor passes every gate.
type stubAuditor struct{}

func (stubAuditor) Audit(_ context.Context, stage types.Stage, _ *types.StageOutput, _ *types.RunContext) (*types.GatekeeperVerdict, error) {
	return &types.GatekeeperVerdict{Stage: stage, Passed: true}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	manager := pipeline.NewManager(pipeline.NewMemoryStore(), stubExecutor{}, stubAuditor{},
		pipeline.Options{RetryBaseDelay: time.Millisecond})
	return New(Config{Port: 0}, manager)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func startRun(t *testing.T, handler http.Handler, manual bool) string {
	t.Helper()
	rec := postJSON(t, handler, "/runs", StartRunRequest{
		DocumentRef: "resumes/jordan.md",
		Role:        "Platform Engineer",
		ManualMode:  manual,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp StartRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func waitForStatus(t *testing.T, handler http.Handler, runID, want string) StatusResponse {
	t.Helper()
	var last StatusResponse
	require.Eventually(t, func() bool {
		rec := get(t, handler, "/runs/"+runID+"/status")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
		return last.Status == want
	}, 10*time.Second, 5*time.Millisecond, "run never reached status %s", want)
	return last
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartRunValidation(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/runs", StartRunRequest{Role: "SRE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "DocumentRef")

	rec = postJSON(t, s.Handler(), "/runs", StartRunRequest{DocumentRef: "resumes/x.md"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestRunToCompletionAndStatus(t *testing.T) {
	s := newTestServer(t)
	runID := startRun(t, s.Handler(), false)

	status := waitForStatus(t, s.Handler(), runID, "complete")
	assert.Equal(t, "design", status.Stage)
	assert.Equal(t, 1, status.Round)
	require.NotNil(t, status.Scorecard)
	assert.Equal(t, 95, status.Scorecard.Overall)
	assert.Len(t, status.AuditTrail, 4)
	assert.NotEmpty(t, status.EndedAt)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t)
	runID := startRun(t, s.Handler(), false)
	waitForStatus(t, s.Handler(), runID, "complete")

	rec := get(t, s.Handler(), "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs []StatusResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, runID, resp.Runs[0].RunID)
}

func TestContinueLifecycle(t *testing.T) {
	s := newTestServer(t)
	runID := startRun(t, s.Handler(), true)

	status := waitForStatus(t, s.Handler(), runID, "paused")
	require.NotNil(t, status.Pause)
	assert.Equal(t, "research", string(status.Pause.CompletedStage))
	assert.Equal(t, "write", string(status.Pause.NextStage))

	rec := postJSON(t, s.Handler(), "/runs/"+runID+"/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Continue while not paused conflicts.
	rec = postJSON(t, s.Handler(), "/runs/"+runID+"/continue", nil)
	if rec.Code != http.StatusConflict {
		// The run may already have paused again at the next boundary; then
		// the second continue is legitimate.
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestContinueUnknownRun(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/runs/not-a-uuid/continue", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s.Handler(), "/runs/00000000-0000-0000-0000-000000000001/continue", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRun(t *testing.T) {
	s := newTestServer(t)
	runID := startRun(t, s.Handler(), true)
	waitForStatus(t, s.Handler(), runID, "paused")

	rec := postJSON(t, s.Handler(), "/runs/"+runID+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	status := waitForStatus(t, s.Handler(), runID, "cancelled")
	assert.NotEmpty(t, status.EndedAt)

	// Cancel is idempotent.
	rec = postJSON(t, s.Handler(), "/runs/"+runID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	runID := startRun(t, s.Handler(), false)
	waitForStatus(t, s.Handler(), runID, "complete")

	rec := get(t, s.Handler(), "/runs/"+runID+"/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var eventNames []string
	scanner := bufio.NewScanner(rec.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			eventNames = append(eventNames, name)
		}
	}

	require.NotEmpty(t, eventNames)
	assert.Equal(t, "run_started", eventNames[0])
	assert.Equal(t, "run_completed", eventNames[len(eventNames)-1])
}

func TestErrorStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(pipeline.ErrRunNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(pipeline.ErrInvalidInput))
	assert.Equal(t, http.StatusConflict, HTTPStatus(pipeline.ErrInvalidState))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}
