package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/resume-optimizer/internal/scorecard"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// drive advances one run until it pauses, finishes, or is cancelled. It is
// the only goroutine mutating the run while running, so each iteration can
// read a consistent snapshot under the handle lock and release it during the
// long model calls. Invariant on entry: the stage_started event for the
// current stage and round has already been persisted, by Start, Continue, or
// the previous gate transition.
func (m *Manager) drive(h *runHandle) {
	ctx := context.Background()

	for {
		if h.cancelRequested.Load() {
			m.transitionCancelled(ctx, h)
			return
		}

		h.mu.Lock()
		if h.state.Status != types.RunStatusRunning {
			h.mu.Unlock()
			return
		}
		stage := h.state.Stage
		runCtx := h.runContextLocked()
		h.mu.Unlock()

		output, err := callWithRetry(ctx, fmt.Sprintf("%s stage", stage),
			m.opts.MaxRetries, m.opts.RetryBaseDelay, h.cancelRequested.Load,
			func(ctx context.Context) (*types.StageOutput, error) {
				return m.executor.Execute(ctx, stage, runCtx)
			})
		if err != nil {
			if h.cancelRequested.Load() {
				m.transitionCancelled(ctx, h)
				return
			}
			m.transitionFailed(ctx, h, err.Error())
			return
		}

		if err := m.recordStageOutput(ctx, h, stage, output); err != nil {
			m.transitionFailed(ctx, h, err.Error())
			return
		}

		// Checkpoint between the stage and its audit. An in-flight call is
		// never preempted; cancellation lands at the next boundary.
		if h.cancelRequested.Load() {
			m.transitionCancelled(ctx, h)
			return
		}

		verdict, err := callWithRetry(ctx, fmt.Sprintf("%s gate audit", stage),
			m.opts.MaxRetries, m.opts.RetryBaseDelay, h.cancelRequested.Load,
			func(ctx context.Context) (*types.GatekeeperVerdict, error) {
				return m.auditor.Audit(ctx, stage, output, runCtx)
			})
		if err != nil {
			if h.cancelRequested.Load() {
				m.transitionCancelled(ctx, h)
				return
			}
			m.transitionFailed(ctx, h, err.Error())
			return
		}

		if done := m.applyVerdict(ctx, h, stage, verdict); done {
			return
		}
	}
}

// recordStageOutput persists the stage's artifact and emits the completion
// batch. For critique it also derives and records the round's scorecard.
func (m *Manager) recordStageOutput(ctx context.Context, h *runHandle, stage types.Stage, output *types.StageOutput) error {
	var card *types.Scorecard
	if stage == types.StageCritique {
		var err error
		card, err = scorecard.Evaluate(output.Critique)
		if err != nil {
			return fmt.Errorf("critique scorecard: %w", err)
		}
	}

	if err := m.store.SaveStageOutput(ctx, h.state.ID, output); err != nil {
		log.Printf("run %s: failed to save %s output: %v", h.state.ID, stage, err)
	}

	h.mu.Lock()
	h.outputs[stage] = output

	completed := h.nextEvent(types.EventStageCompleted, func(e *types.ProgressEvent) {
		e.Message = output.Summary
		if e.Message == "" {
			e.Message = fmt.Sprintf("%s stage completed", stage)
		}
	})
	batch := []types.ProgressEvent{completed}

	if card != nil {
		h.state.LatestScorecard = card
		batch = append(batch, h.nextEvent(types.EventScorecard, func(e *types.ProgressEvent) {
			e.Scorecard = card
			e.Message = fmt.Sprintf("scorecard: overall=%d ats=%d keyword=%d clarity=%d",
				card.Overall, card.ATS, card.KeywordCoverage, card.Clarity)
		}))
	}
	h.mu.Unlock()

	m.persist(ctx, h, batch)
	return nil
}

// applyVerdict records the gatekeeper's ruling and performs the resulting
// transition. It returns true when the goroutine should stop, because the
// run ended or paused for a manual continue.
func (m *Manager) applyVerdict(ctx context.Context, h *runHandle, stage types.Stage, verdict *types.GatekeeperVerdict) bool {
	h.mu.Lock()

	verdict.Stage = stage
	if verdict.Forced && m.opts.MaxForcedPasses > 0 && h.state.ForcedPasses >= m.opts.MaxForcedPasses {
		// Budget spent: the override privilege is gone and the verdict
		// stands on its blocking issues alone.
		verdict.Forced = false
		verdict.Passed = false
		verdict.BlockingIssues = append(verdict.BlockingIssues, "forced pass budget exhausted")
	}

	h.state.AuditTrail = append(h.state.AuditTrail, *verdict)
	if verdict.Forced {
		h.state.ForcedPasses++
	}

	if !verdict.Passed {
		return m.gateFailedLocked(ctx, h, stage, verdict)
	}

	gateType := types.EventGatePassed
	if verdict.Forced {
		gateType = types.EventGateForced
	}
	gate := h.nextEvent(gateType, func(e *types.ProgressEvent) {
		e.Verdict = verdict
		e.Message = fmt.Sprintf("%s gate passed", stage)
		if verdict.Forced {
			e.Message = fmt.Sprintf("%s gate passed (forced, %d blocking issues)", stage, len(verdict.BlockingIssues))
		}
	})
	batch := []types.ProgressEvent{gate}

	next, ok := verdict.ResolveNext()
	loopback := ok && next.Index() <= stage.Index()
	if loopback {
		switch {
		case stage == types.StageCritique && h.state.LatestScorecard != nil &&
			h.state.LatestScorecard.Overall >= m.opts.PassThreshold:
			// The scorecard already clears the bar; the redirect is moot.
			next, ok = stage.Next()
			loopback = false
		case h.state.Round >= m.opts.MaxRounds:
			// Round budget spent on a passing verdict: move forward with
			// what we have rather than fail.
			next, ok = stage.Next()
			loopback = false
		}
	}

	if !ok {
		// Final stage passed with no redirect.
		batch = append(batch, h.markTerminalLocked(types.RunStatusComplete, "optimization complete")...)
		h.mu.Unlock()
		m.persist(ctx, h, batch)
		h.log.Close()
		m.forget(h.state.ID)
		return true
	}

	if loopback {
		h.state.Round++
		h.state.Stage = next
		batch = append(batch, h.nextEvent(types.EventRoundStarted, func(e *types.ProgressEvent) {
			e.Message = fmt.Sprintf("refinement round %d started", h.state.Round)
		}))
	} else {
		h.state.Stage = next
	}

	if h.state.ManualMode {
		pause := &types.ManualPause{
			CompletedStage: stage,
			NextStage:      next,
			Message:        fmt.Sprintf("%s complete, awaiting continue before %s", stage, next),
		}
		h.state.Status = types.RunStatusPaused
		h.state.Pause = pause
		batch = append(batch, h.nextEvent(types.EventRunPaused, func(e *types.ProgressEvent) {
			e.Pause = pause
			e.Message = pause.Message
		}))
		h.mu.Unlock()
		m.persist(ctx, h, batch)
		return true
	}

	batch = append(batch, h.nextEvent(types.EventStageStarted, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("%s stage started", next)
	}))
	h.mu.Unlock()
	m.persist(ctx, h, batch)
	return false
}

// gateFailedLocked handles a failing verdict. Only write and critique sit
// inside the refinement loop, so only they get another round of the same
// stage while the budget lasts; a failed research or design gate, or an
// exhausted budget, is a terminal quality failure.
// Called with h.mu held; always unlocks.
func (m *Manager) gateFailedLocked(ctx context.Context, h *runHandle, stage types.Stage, verdict *types.GatekeeperVerdict) bool {
	gate := h.nextEvent(types.EventGateFailed, func(e *types.ProgressEvent) {
		e.Verdict = verdict
		e.Message = fmt.Sprintf("%s gate failed: %d blocking issues", stage, len(verdict.BlockingIssues))
	})
	batch := []types.ProgressEvent{gate}

	refinable := stage == types.StageWrite || stage == types.StageCritique
	if !refinable || h.state.Round >= m.opts.MaxRounds {
		qerr := &QualityGateError{Stage: stage, Rounds: h.state.Round, BlockingIssues: verdict.BlockingIssues}
		batch = append(batch, h.markTerminalLocked(types.RunStatusFailed, qerr.Error())...)
		h.mu.Unlock()
		m.persist(ctx, h, batch)
		h.log.Close()
		m.forget(h.state.ID)
		return true
	}

	h.state.Round++
	batch = append(batch, h.nextEvent(types.EventRoundStarted, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("refinement round %d started", h.state.Round)
	}))
	batch = append(batch, h.nextEvent(types.EventStageStarted, func(e *types.ProgressEvent) {
		e.Message = fmt.Sprintf("%s stage restarted", stage)
	}))
	h.mu.Unlock()
	m.persist(ctx, h, batch)
	return false
}

// transitionFailed ends the run with a failure record.
func (m *Manager) transitionFailed(ctx context.Context, h *runHandle, reason string) {
	h.mu.Lock()
	if h.state.Status.IsTerminal() {
		h.mu.Unlock()
		return
	}
	batch := h.markTerminalLocked(types.RunStatusFailed, reason)
	h.mu.Unlock()
	m.persist(ctx, h, batch)
	h.log.Close()
	m.forget(h.state.ID)
}

// transitionCancelled ends the run at a cancellation checkpoint.
func (m *Manager) transitionCancelled(ctx context.Context, h *runHandle) {
	h.mu.Lock()
	if h.state.Status.IsTerminal() {
		h.mu.Unlock()
		return
	}
	batch := h.markTerminalLocked(types.RunStatusCancelled, "cancelled by request")
	h.mu.Unlock()
	m.persist(ctx, h, batch)
	h.log.Close()
	m.forget(h.state.ID)
}

// persist applies one transition to the store and then publishes its events
// to live subscribers. A store failure is logged and the run continues; the
// in-memory state remains canonical and the next transition retries the
// snapshot write.
func (m *Manager) persist(ctx context.Context, h *runHandle, batch []types.ProgressEvent) {
	h.mu.Lock()
	snapshot := h.state.Clone()
	h.mu.Unlock()

	if err := m.store.ApplyTransition(ctx, snapshot, batch); err != nil {
		log.Printf("run %s: failed to persist transition: %v", snapshot.ID, err)
	}
	h.log.Append(batch...)
}
