// Package pipeline provides the orchestrator for the resume optimization
// pipeline: a per-run state machine that sequences the research, write,
// critique and design stages, consults the gatekeeper at every boundary,
// runs scorecard-driven refinement rounds, honors manual pause checkpoints,
// and supports cooperative cancellation. Every transition is persisted
// atomically together with its progress events, and the event stream alone
// is sufficient to rebuild run state after a crash.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	evstream "github.com/jonathan/resume-optimizer/internal/events"
	"github.com/jonathan/resume-optimizer/internal/gatekeeper"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Executor runs a single pipeline stage. Implementations must not retry;
// transient-failure policy is the orchestrator's.
type Executor interface {
	Execute(ctx context.Context, stage types.Stage, runCtx *types.RunContext) (*types.StageOutput, error)
}

// Manager owns all runs in this process. Runs are independent sequential
// state machines; distinct runs execute fully concurrently and share no
// mutable state beyond the executor and auditor, which must be safe for
// concurrent use.
type Manager struct {
	store    Store
	executor Executor
	auditor  gatekeeper.Auditor
	opts     Options

	mu   sync.Mutex
	runs map[uuid.UUID]*runHandle
}

// runHandle is the in-memory half of one run: canonical state, recorded
// stage outputs, the live event log, and the cooperative cancellation flag.
type runHandle struct {
	mu              sync.Mutex
	state           *types.RunState
	outputs         map[types.Stage]*types.StageOutput
	log             *evstream.Log
	cancelRequested atomic.Bool
}

// NewManager creates a manager with the given collaborators and policy.
func NewManager(store Store, executor Executor, auditor gatekeeper.Auditor, opts Options) *Manager {
	return &Manager{
		store:    store,
		executor: executor,
		auditor:  auditor,
		opts:     opts.withDefaults(),
		runs:     make(map[uuid.UUID]*runHandle),
	}
}

// Start begins a new run and returns its id. The run executes on its own
// goroutine; progress is observable via Subscribe and Status.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (uuid.UUID, error) {
	if strings.TrimSpace(opts.DocumentRef) == "" {
		return uuid.Nil, fmt.Errorf("%w: document_ref is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	state := &types.RunState{
		ID:          uuid.New(),
		DocumentRef: opts.DocumentRef,
		Target:      opts.Target,
		Stage:       types.StageResearch,
		Round:       1,
		Status:      types.RunStatusRunning,
		ManualMode:  opts.ManualMode,
		CreatedAt:   now,
	}

	h := &runHandle{
		state:   state,
		outputs: make(map[types.Stage]*types.StageOutput),
		log:     evstream.NewLog(state.ID),
	}

	started := h.nextEvent(types.EventRunStarted, func(e *types.ProgressEvent) {
		e.DocumentRef = opts.DocumentRef
		target := opts.Target
		e.Target = &target
		e.ManualMode = opts.ManualMode
		e.Message = fmt.Sprintf("optimization started for %q", opts.Target.Role)
	})
	scheduled := h.nextEvent(types.EventStageStarted, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("%s stage started", state.Stage)
	})

	if err := m.store.CreateRun(ctx, state.Clone(), []types.ProgressEvent{started, scheduled}); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}

	m.mu.Lock()
	m.runs[state.ID] = h
	m.mu.Unlock()

	h.log.Append(started, scheduled)
	go m.drive(h)

	return state.ID, nil
}

// Continue resumes a manually paused run at the step recorded in its pause
// checkpoint. It fails with ErrInvalidState unless the run is exactly in
// the paused state, so a second continue in a row is rejected.
func (m *Manager) Continue(ctx context.Context, runID uuid.UUID) error {
	h, err := m.handle(runID)
	if err != nil {
		// Terminal runs are not resident; report the state conflict
		// rather than a missing run.
		state, serr := m.store.GetRun(ctx, runID)
		if serr != nil {
			return serr
		}
		if state == nil {
			return err
		}
		return fmt.Errorf("%w: run %s is %s, not paused", ErrInvalidState, runID, state.Status)
	}

	h.mu.Lock()
	if h.state.Status != types.RunStatusPaused || h.state.Pause == nil {
		status := h.state.Status
		h.mu.Unlock()
		return fmt.Errorf("%w: run %s is %s, not paused", ErrInvalidState, runID, status)
	}

	next := h.state.Pause.NextStage
	h.state.Status = types.RunStatusRunning
	h.state.Pause = nil
	h.state.Stage = next

	resumed := h.nextEvent(types.EventRunResumed, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("resumed at %s", next)
	})
	scheduled := h.nextEvent(types.EventStageStarted, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("%s stage started", next)
	})
	batch := []types.ProgressEvent{resumed, scheduled}
	h.mu.Unlock()

	m.persist(ctx, h, batch)
	go m.drive(h)
	return nil
}

// Cancel requests cancellation. A running run stops at its next transition
// boundary; a paused run is cancelled immediately. Cancelling a run that is
// already terminal is a no-op, not an error.
func (m *Manager) Cancel(ctx context.Context, runID uuid.UUID) error {
	h, err := m.handle(runID)
	if err != nil {
		return m.cancelNonResident(ctx, runID, err)
	}

	h.mu.Lock()
	switch {
	case h.state.Status.IsTerminal():
		h.mu.Unlock()
		return nil
	case h.state.Status == types.RunStatusPaused:
		// No goroutine is scheduled while paused, so finish here.
		batch := h.markTerminalLocked(types.RunStatusCancelled, "cancelled while paused")
		h.mu.Unlock()
		m.persist(ctx, h, batch)
		h.log.Close()
		m.forget(runID)
		return nil
	default:
		h.cancelRequested.Store(true)
		h.mu.Unlock()
		return nil
	}
}

// cancelNonResident handles cancellation of a run with no resident handle:
// a terminal run is a no-op, and a run left behind by a crashed process is
// cancelled straight in the store. notFound is returned when the store does
// not know the run either.
func (m *Manager) cancelNonResident(ctx context.Context, runID uuid.UUID, notFound error) error {
	state, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if state == nil {
		return notFound
	}
	if state.Status.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	state.Status = types.RunStatusCancelled
	state.EndedAt = &now
	state.Pause = nil
	state.LastSeq++
	ev := types.ProgressEvent{
		Seq:       state.LastSeq,
		RunID:     runID,
		Type:      types.EventRunCancelled,
		Stage:     state.Stage,
		Round:     state.Round,
		Message:   "cancelled by request",
		Timestamp: now,
	}
	return m.store.ApplyTransition(ctx, state, []types.ProgressEvent{ev})
}

// Subscribe returns the run's ordered event sequence: a full replay from
// the first event, then live events. The channel closes when the run
// reaches a terminal state or when ctx ends, whichever comes first.
func (m *Manager) Subscribe(ctx context.Context, runID uuid.UUID) (<-chan types.ProgressEvent, error) {
	m.mu.Lock()
	h, ok := m.runs[runID]
	m.mu.Unlock()
	if ok {
		return h.log.Subscribe(ctx), nil
	}

	// Not resident: serve a finished replay straight from the store.
	state, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	evts, err := m.store.ListEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	log := evstream.NewLog(runID)
	log.Append(evts...)
	log.Close()
	return log.Subscribe(ctx), nil
}

// Status returns a point-in-time snapshot of the run: stage, round, status,
// latest scorecard, gatekeeper audit trail, and pause checkpoint if any.
func (m *Manager) Status(ctx context.Context, runID uuid.UUID) (*types.RunState, error) {
	m.mu.Lock()
	h, ok := m.runs[runID]
	m.mu.Unlock()
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.state.Clone(), nil
	}

	state, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return state, nil
}

// ListRuns returns recent run snapshots, newest first.
func (m *Manager) ListRuns(ctx context.Context, limit int) ([]*types.RunState, error) {
	return m.store.ListRuns(ctx, limit)
}

// Recover reloads every non-terminal run from the store by replaying its
// event stream, then resumes running runs and re-arms paused ones. It is
// called once at process start; runs recover concurrently.
func (m *Manager) Recover(ctx context.Context) error {
	ids, err := m.store.ListActiveRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active runs: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			evts, err := m.store.ListEvents(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load events for %s: %w", id, err)
			}
			state := evstream.Reduce(id, evts)

			outputs := make(map[types.Stage]*types.StageOutput)
			for _, stage := range types.AllStages {
				out, err := m.store.GetStageOutput(gctx, id, stage)
				if err != nil {
					return fmt.Errorf("failed to load %s output for %s: %w", stage, id, err)
				}
				if out != nil {
					outputs[stage] = out
				}
			}

			h := &runHandle{
				state:   state,
				outputs: outputs,
				log:     evstream.NewLog(id),
			}
			h.log.Append(evts...)

			m.mu.Lock()
			m.runs[id] = h
			m.mu.Unlock()

			if state.Status == types.RunStatusRunning {
				// The last persisted event is the active stage's start; the
				// stage re-executes and its events append after the prior
				// ones (at-least-once).
				go m.drive(h)
			}
			return nil
		})
	}
	return g.Wait()
}

// forget drops a terminal run's handle. Later lookups fall back to the
// store, so a long-lived process does not accumulate finished runs.
func (m *Manager) forget(runID uuid.UUID) {
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
}

// handle looks up the resident handle for a run.
func (m *Manager) handle(runID uuid.UUID) (*runHandle, error) {
	m.mu.Lock()
	h, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return h, nil
}

// nextEvent allocates the next sequence number and stamps an event with the
// run's current stage and round. Callers must hold h.mu.
func (h *runHandle) nextEvent(t types.EventType, mutate func(*types.ProgressEvent)) types.ProgressEvent {
	h.state.LastSeq++
	e := types.ProgressEvent{
		Seq:       h.state.LastSeq,
		RunID:     h.state.ID,
		Type:      t,
		Stage:     h.state.Stage,
		Round:     h.state.Round,
		Timestamp: time.Now().UTC(),
	}
	if mutate != nil {
		mutate(&e)
	}
	return e
}

// markTerminalLocked moves the run to a terminal status and returns the
// closing event batch. Callers must hold h.mu.
func (h *runHandle) markTerminalLocked(status types.RunStatus, reason string) []types.ProgressEvent {
	now := time.Now().UTC()
	h.state.Status = status
	h.state.EndedAt = &now

	var eventType types.EventType
	switch status {
	case types.RunStatusComplete:
		eventType = types.EventRunCompleted
	case types.RunStatusCancelled:
		eventType = types.EventRunCancelled
	default:
		eventType = types.EventRunFailed
		h.state.FailureReason = reason
	}

	ev := h.nextEvent(eventType, func(e *types.ProgressEvent) {
		e.Message = reason
		if eventType == types.EventRunFailed {
			e.Error = reason
		}
	})
	return []types.ProgressEvent{ev}
}

// runContextLocked snapshots the context handed to stages and the
// gatekeeper. Callers must hold h.mu.
func (h *runHandle) runContextLocked() *types.RunContext {
	prior := make(map[types.Stage]*types.StageOutput, len(h.outputs))
	for stage, out := range h.outputs {
		prior[stage] = out
	}
	return &types.RunContext{
		DocumentRef:  h.state.DocumentRef,
		Target:       h.state.Target,
		Round:        h.state.Round,
		PriorOutputs: prior,
	}
}
