// Package events provides the per-run append-only progress event log, live
// subscriptions with full replay, and the reducer that reconstructs run
// state from the stream.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Log is the in-memory append-only event stream for a single run. Appends
// preserve program order; subscribers always replay from the beginning and
// then receive live events until the log is closed at a terminal state.
type Log struct {
	mu     sync.Mutex
	cond   *sync.Cond
	runID  uuid.UUID
	events []types.ProgressEvent
	closed bool
}

// NewLog creates an empty log for a run.
func NewLog(runID uuid.UUID) *Log {
	l := &Log{runID: runID}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// RunID returns the run this log belongs to.
func (l *Log) RunID() uuid.UUID {
	return l.runID
}

// Append adds events to the log in order. Appending to a closed log is a
// programming error and is ignored to keep terminal runs immutable.
func (l *Log) Append(evts ...types.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, evts...)
	l.cond.Broadcast()
}

// Close marks the stream finished. Subscribers drain remaining events and
// their channels close.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
}

// Events returns a copy of everything appended so far.
func (l *Log) Events() []types.ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.ProgressEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Subscribe returns a channel that yields the full event sequence from the
// beginning (replay) followed by live events. The channel closes once the
// log is closed and drained, or as soon as ctx ends, so an abandoned
// subscription releases its goroutine. Each subscriber keeps its own cursor,
// so a slow consumer never blocks the orchestrator or other subscribers.
func (l *Log) Subscribe(ctx context.Context) <-chan types.ProgressEvent {
	ch := make(chan types.ProgressEvent)
	go func() {
		defer close(ch)

		// Wake the cond wait below when the subscriber's context ends.
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				l.mu.Lock()
				l.cond.Broadcast()
				l.mu.Unlock()
			case <-stop:
			}
		}()

		cursor := 0
		for {
			l.mu.Lock()
			for cursor >= len(l.events) && !l.closed && ctx.Err() == nil {
				l.cond.Wait()
			}
			if ctx.Err() != nil || (cursor >= len(l.events) && l.closed) {
				l.mu.Unlock()
				return
			}
			evt := l.events[cursor]
			cursor++
			l.mu.Unlock()

			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
