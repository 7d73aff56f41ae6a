// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxIssuesToShow is the default number of blocking issues to display
	maxIssuesToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunHeader outputs the run parameters at the start of a run.
func (p *Printer) PrintRunHeader(documentRef string, target types.TargetParams, manual bool) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Document: %s\n", documentRef))
	sb.WriteString(fmt.Sprintf("Role:     %s\n", target.Role))
	if target.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", target.Location))
	}
	if target.Mode != "" {
		sb.WriteString(fmt.Sprintf("Mode:     %s\n", target.Mode))
	}
	if manual {
		sb.WriteString("Pausing at every stage boundary")
	}

	p.printBox("OPTIMIZATION RUN", strings.TrimRight(sb.String(), "\n"))
}

// PrintScorecard outputs a critique round's quality scorecard.
func (p *Printer) PrintScorecard(round int, card *types.Scorecard) {
	if card == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:          %3d\n", card.Overall))
	sb.WriteString(fmt.Sprintf("ATS:              %3d\n", card.ATS))
	sb.WriteString(fmt.Sprintf("Keyword coverage: %3d\n", card.KeywordCoverage))
	sb.WriteString(fmt.Sprintf("Clarity:          %3d", card.Clarity))

	p.printBox(fmt.Sprintf("SCORECARD (round %d)", round), sb.String())
}

// PrintVerdict outputs a gatekeeper verdict.
func (p *Printer) PrintVerdict(v *types.GatekeeperVerdict) {
	if v == nil {
		return
	}

	var sb strings.Builder
	switch {
	case v.Passed && v.Forced:
		sb.WriteString("Result: FORCED PASS\n")
	case v.Passed:
		sb.WriteString("Result: PASS\n")
	default:
		sb.WriteString("Result: FAIL\n")
	}

	if len(v.BlockingIssues) > 0 {
		sb.WriteString("Blocking issues:\n")
		shown := v.BlockingIssues
		if len(shown) > maxIssuesToShow {
			shown = shown[:maxIssuesToShow]
		}
		for _, issue := range shown {
			sb.WriteString(fmt.Sprintf("  - %s\n", issue))
		}
		if len(v.BlockingIssues) > maxIssuesToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(v.BlockingIssues)-maxIssuesToShow))
		}
	}

	p.printBox(fmt.Sprintf("GATE: %s", strings.ToUpper(string(v.Stage))), strings.TrimRight(sb.String(), "\n"))
}

// PrintEvent outputs a single progress event as a one-line log entry, with
// boxes for scorecards and verdicts.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(e types.ProgressEvent) {
	switch e.Type {
	case types.EventScorecard:
		p.PrintScorecard(e.Round, e.Scorecard)
	case types.EventGatePassed, types.EventGateForced, types.EventGateFailed:
		p.PrintVerdict(e.Verdict)
	case types.EventRunFailed:
		fmt.Fprintf(p.out, "[%s] run failed: %s\n", e.Timestamp.Format("15:04:05"), e.Error)
	default:
		fmt.Fprintf(p.out, "[%s] %s\n", e.Timestamp.Format("15:04:05"), e.Message)
	}
}

// PrintRunResult outputs the final state of a finished run.
func (p *Printer) PrintRunResult(state *types.RunState) {
	if state == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status: %s\n", state.Status))
	sb.WriteString(fmt.Sprintf("Rounds: %d\n", state.Round))
	if state.LatestScorecard != nil {
		sb.WriteString(fmt.Sprintf("Score:  %d\n", state.LatestScorecard.Overall))
	}
	if state.ForcedPasses > 0 {
		sb.WriteString(fmt.Sprintf("Forced passes: %d\n", state.ForcedPasses))
	}
	if state.FailureReason != "" {
		sb.WriteString(fmt.Sprintf("Reason: %s\n", state.FailureReason))
	}

	p.printBox("RUN FINISHED", strings.TrimRight(sb.String(), "\n"))
}
