// Package stages executes individual pipeline stages against the
// content-generation capability. Each stage builds its prompt from the run
// context and the outputs of the stages before it; the critique stage
// additionally returns structured findings with quality sub-scores.
package stages

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// stageTiers maps each stage to the model tier it runs on. Research and
// critique need structured reasoning; write and design are the heavy
// generation steps.
var stageTiers = map[types.Stage]llm.ModelTier{
	types.StageResearch: llm.TierStandard,
	types.StageWrite:    llm.TierAdvanced,
	types.StageCritique: llm.TierStandard,
	types.StageDesign:   llm.TierAdvanced,
}

// Executor invokes one pipeline stage against the generation capability.
type Executor struct {
	client llm.Client
}

// NewExecutor creates a stage executor backed by the given client.
func NewExecutor(client llm.Client) *Executor {
	return &Executor{client: client}
}

// Execute runs a single stage and returns its output. It does not retry;
// transient-failure policy belongs to the orchestrator.
func (e *Executor) Execute(ctx context.Context, stage types.Stage, runCtx *types.RunContext) (*types.StageOutput, error) {
	if !stage.IsValid() {
		return nil, pipeline.Permanent(fmt.Errorf("unknown stage: %q", stage))
	}
	if runCtx == nil {
		return nil, pipeline.Permanent(fmt.Errorf("run context is required"))
	}

	tier := stageTiers[stage]

	if stage == types.StageCritique {
		raw, err := e.client.GenerateJSON(ctx, critiquePrompt(runCtx), tier)
		if err != nil {
			return nil, fmt.Errorf("critique generation failed: %w", err)
		}
		findings, err := ParseCritiqueFindings(raw)
		if err != nil {
			return nil, fmt.Errorf("critique output invalid: %w", err)
		}
		return &types.StageOutput{
			Stage:    stage,
			Content:  raw,
			Summary:  fmt.Sprintf("critique round %d: %d issues", runCtx.Round, len(findings.Issues)),
			Critique: findings,
		}, nil
	}

	prompt, err := stagePrompt(stage, runCtx)
	if err != nil {
		return nil, err
	}

	content, err := e.client.GenerateContent(ctx, prompt, tier)
	if err != nil {
		return nil, fmt.Errorf("%s generation failed: %w", stage, err)
	}

	return &types.StageOutput{
		Stage:   stage,
		Content: content,
	}, nil
}
