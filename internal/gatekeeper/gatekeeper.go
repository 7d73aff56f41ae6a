// Package gatekeeper implements the independent verification step run at
// every stage boundary. The gatekeeper audits a stage's output and rules
// pass, forced pass, or fail with a reasoned list of blocking issues.
package gatekeeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// DefaultTimeout bounds a single audit call. A timeout is reported as an
// error, never as a fail verdict.
const DefaultTimeout = 60 * time.Second

// Auditor decides whether a stage boundary may be crossed. Implementations
// must be idempotent given the same inputs so the orchestrator can retry
// safely.
type Auditor interface {
	Audit(ctx context.Context, stage types.Stage, output *types.StageOutput, runCtx *types.RunContext) (*types.GatekeeperVerdict, error)
}

// LLMGatekeeper audits stage transitions using the generation capability.
type LLMGatekeeper struct {
	client  llm.Client
	timeout time.Duration
}

// New creates a gatekeeper with the default audit timeout.
func New(client llm.Client) *LLMGatekeeper {
	return &LLMGatekeeper{client: client, timeout: DefaultTimeout}
}

// WithTimeout overrides the audit timeout.
func (g *LLMGatekeeper) WithTimeout(d time.Duration) *LLMGatekeeper {
	g.timeout = d
	return g
}

// Audit reviews one stage's output and returns a verdict. The call is
// bounded by the configured timeout; on expiry the context error is
// returned for the orchestrator to treat as a stage failure.
func (g *LLMGatekeeper) Audit(ctx context.Context, stage types.Stage, output *types.StageOutput, runCtx *types.RunContext) (*types.GatekeeperVerdict, error) {
	if output == nil {
		return nil, fmt.Errorf("stage output is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.GenerateJSON(ctx, auditPrompt(stage, output, runCtx), llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper audit for %s failed: %w", stage, err)
	}

	verdict, err := ParseVerdict(stage, raw)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper verdict for %s invalid: %w", stage, err)
	}
	return verdict, nil
}

func auditPrompt(stage types.Stage, output *types.StageOutput, runCtx *types.RunContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are an independent quality gatekeeper for a resume optimization pipeline.
A pipeline stage just finished. Decide whether the run may advance.

Stage: %s
Round: %d
Target role: %s

Stage output:
%s
`, stage, runCtx.Round, runCtx.Target.Role, output.Content)

	if output.Critique != nil {
		fmt.Fprintf(&sb, "\nReviewer sub-scores: ats=%d keyword=%d clarity=%d\n",
			output.Critique.ATSScore, output.Critique.KeywordCoverageScore, output.Critique.ClarityScore)
	}

	sb.WriteString(`
Respond with JSON only:
{"passed": bool, "forced": bool, "blocking_issues": ["..."], "next_stage": "research|write|critique|design|"}
Rules: forced may be true only together with passed (a forced pass overrides
blocking issues to keep the pipeline moving). Leave next_stage empty to use
the default stage order; set it only to redirect, e.g. back to write for
another refinement round. List blocking_issues whenever the output should not
ship as-is, even on a forced pass.`)
	return sb.String()
}
