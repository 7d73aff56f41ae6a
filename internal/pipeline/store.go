package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Store is the persistence collaborator. One transition = one atomic write
// of the updated snapshot plus the newly appended events, so a crash never
// leaves a run's snapshot and event stream disagreeing.
type Store interface {
	// CreateRun persists a new run and its initial events atomically.
	CreateRun(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error
	// ApplyTransition persists the updated snapshot and appends the
	// transition's events in a single atomic write.
	ApplyTransition(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error
	// GetRun loads the latest snapshot for a run.
	GetRun(ctx context.Context, runID uuid.UUID) (*types.RunState, error)
	// ListEvents returns a run's full event stream in append order.
	ListEvents(ctx context.Context, runID uuid.UUID) ([]types.ProgressEvent, error)
	// ListActiveRuns returns the ids of runs in a non-terminal status.
	ListActiveRuns(ctx context.Context) ([]uuid.UUID, error)
	// ListRuns returns recent run snapshots, newest first.
	ListRuns(ctx context.Context, limit int) ([]*types.RunState, error)
	// SaveStageOutput records a stage's output so pause or restart never
	// discards computed work.
	SaveStageOutput(ctx context.Context, runID uuid.UUID, output *types.StageOutput) error
	// GetStageOutput loads a recorded stage output, nil if absent.
	GetStageOutput(ctx context.Context, runID uuid.UUID, stage types.Stage) (*types.StageOutput, error)
}

// MemoryStore is the in-process Store used by tests and database-less CLI
// runs. All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]*types.RunState
	order   []uuid.UUID
	events  map[uuid.UUID][]types.ProgressEvent
	outputs map[uuid.UUID]map[types.Stage]*types.StageOutput
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[uuid.UUID]*types.RunState),
		events:  make(map[uuid.UUID][]types.ProgressEvent),
		outputs: make(map[uuid.UUID]map[types.Stage]*types.StageOutput),
	}
}

// CreateRun persists a new run and its initial events atomically.
func (m *MemoryStore) CreateRun(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[state.ID]; exists {
		return fmt.Errorf("run already exists: %s", state.ID)
	}
	m.runs[state.ID] = state.Clone()
	m.order = append(m.order, state.ID)
	m.events[state.ID] = append([]types.ProgressEvent(nil), events...)
	return nil
}

// ApplyTransition persists the updated snapshot and appends events.
func (m *MemoryStore) ApplyTransition(ctx context.Context, state *types.RunState, events []types.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[state.ID]; !exists {
		return fmt.Errorf("run not found: %s", state.ID)
	}
	m.runs[state.ID] = state.Clone()
	m.events[state.ID] = append(m.events[state.ID], events...)
	return nil
}

// GetRun loads the latest snapshot for a run.
func (m *MemoryStore) GetRun(ctx context.Context, runID uuid.UUID) (*types.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// ListEvents returns a run's full event stream in append order.
func (m *MemoryStore) ListEvents(ctx context.Context, runID uuid.UUID) ([]types.ProgressEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ProgressEvent(nil), m.events[runID]...), nil
}

// ListActiveRuns returns the ids of runs in a non-terminal status.
func (m *MemoryStore) ListActiveRuns(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, id := range m.order {
		if !m.runs[id].Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListRuns returns recent run snapshots, newest first.
func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]*types.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.RunState
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.runs[m.order[i]].Clone())
	}
	return out, nil
}

// SaveStageOutput records a stage's output.
func (m *MemoryStore) SaveStageOutput(ctx context.Context, runID uuid.UUID, output *types.StageOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outputs[runID] == nil {
		m.outputs[runID] = make(map[types.Stage]*types.StageOutput)
	}
	cp := *output
	m.outputs[runID][output.Stage] = &cp
	return nil
}

// GetStageOutput loads a recorded stage output, nil if absent.
func (m *MemoryStore) GetStageOutput(ctx context.Context, runID uuid.UUID, stage types.Stage) (*types.StageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStage, ok := m.outputs[runID]
	if !ok {
		return nil, nil
	}
	out, ok := byStage[stage]
	if !ok {
		return nil, nil
	}
	cp := *out
	return &cp, nil
}
