package stages

import (
	"fmt"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// stagePrompt builds the generation prompt for the non-critique stages.
func stagePrompt(stage types.Stage, runCtx *types.RunContext) (string, error) {
	switch stage {
	case types.StageResearch:
		return researchPrompt(runCtx), nil
	case types.StageWrite:
		return writePrompt(runCtx), nil
	case types.StageDesign:
		return designPrompt(runCtx), nil
	default:
		return "", fmt.Errorf("no prompt for stage %q", stage)
	}
}

func targetDescription(target types.TargetParams) string {
	var sb strings.Builder
	sb.WriteString("Target role: " + target.Role)
	if target.Location != "" {
		sb.WriteString("\nTarget location: " + target.Location)
	}
	if target.Mode != "" {
		sb.WriteString("\nWork mode: " + target.Mode)
	}
	return sb.String()
}

func researchPrompt(runCtx *types.RunContext) string {
	return fmt.Sprintf(`You are a job market researcher preparing a resume optimization.

%s
Source resume reference: %s

Produce a research brief for tailoring this resume: the skills and keywords
hiring teams screen for in this role, ATS conventions to follow, and the
experience themes to emphasize. Be specific and concise.`,
		targetDescription(runCtx.Target), runCtx.DocumentRef)
}

func writePrompt(runCtx *types.RunContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a professional resume writer.

%s
Source resume reference: %s
`, targetDescription(runCtx.Target), runCtx.DocumentRef)

	if research := runCtx.Output(types.StageResearch); research != nil {
		sb.WriteString("\nResearch brief:\n" + research.Content + "\n")
	}
	if critique := runCtx.Output(types.StageCritique); critique != nil && critique.Critique != nil {
		fmt.Fprintf(&sb, "\nThis is refinement round %d. Address the reviewer's issues:\n", runCtx.Round)
		for _, issue := range critique.Critique.Issues {
			sb.WriteString("- " + issue + "\n")
		}
	}

	sb.WriteString("\nRewrite the resume content optimized for this target. Keep every claim truthful to the source material.")
	return sb.String()
}

func critiquePrompt(runCtx *types.RunContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are an exacting resume reviewer. Score the draft below.

%s
`, targetDescription(runCtx.Target))

	if draft := runCtx.Output(types.StageWrite); draft != nil {
		sb.WriteString("\nDraft:\n" + draft.Content + "\n")
	}
	if research := runCtx.Output(types.StageResearch); research != nil {
		sb.WriteString("\nResearch brief the draft should satisfy:\n" + research.Content + "\n")
	}

	sb.WriteString(`
Respond with JSON only, matching this shape:
{"ats_score": 0-100, "keyword_coverage_score": 0-100, "clarity_score": 0-100,
 "strengths": ["..."], "issues": ["..."]}
Issues must be concrete and actionable.`)
	return sb.String()
}

func designPrompt(runCtx *types.RunContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a resume layout specialist.

%s
`, targetDescription(runCtx.Target))

	if draft := runCtx.Output(types.StageWrite); draft != nil {
		sb.WriteString("\nFinal content:\n" + draft.Content + "\n")
	}

	sb.WriteString("\nProduce the final formatted resume: section ordering, headings and layout guidance suitable for a one-page document. Do not alter the wording of the content.")
	return sb.String()
}
