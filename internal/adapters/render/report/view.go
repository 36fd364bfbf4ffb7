package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/johnnohj/mu2-runtime/internal/application"
	"github.com/johnnohj/mu2-runtime/internal/domain"
)

// RenderExecution formats one execution result for the terminal.
func RenderExecution(result domain.ExecutionResult) string {
	return renderExecution(result, newStyles())
}

// RenderOutcome formats whatever an execution produced: one result, or the
// physical/virtual/comparison triple for a dual run.
func RenderOutcome(outcome application.Outcome) string {
	s := newStyles()
	var sections []string

	if outcome.Physical != nil {
		sections = append(sections, renderExecution(*outcome.Physical, s))
	}
	if outcome.Virtual != nil {
		sections = append(sections, s.section.Render(renderExecution(*outcome.Virtual, s)))
	}
	if outcome.Comparison != nil && outcome.Physical != nil && outcome.Virtual != nil {
		sections = append(sections, s.section.Render(renderComparison(*outcome.Physical, *outcome.Virtual, *outcome.Comparison, s)))
	}

	if len(sections) == 0 {
		return s.empty.Render("No execution results.")
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderExecution(result domain.ExecutionResult, s styles) string {
	verdict := s.pass.Render("ok")
	if !result.Success {
		verdict = s.fail.Render("failed")
	}

	lines := []string{
		s.title.Render(fmt.Sprintf("%s execution", result.Environment)) + " " + verdict,
		s.meta.Render(fmt.Sprintf("elapsed: %dms", result.ElapsedMs)),
	}

	if result.Error != "" {
		lines = append(lines, s.fail.Render("error: ")+s.detail.Render(result.Error))
	}

	if strings.TrimSpace(result.Output) != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Output, "\n"), "\n") {
			lines = append(lines, s.output.Render("  "+line))
		}
	} else {
		lines = append(lines, s.empty.Render("  (no output)"))
	}

	if len(result.HardwareChanges) > 0 {
		lines = append(lines, s.header.Render(fmt.Sprintf("hardware events: %d", len(result.HardwareChanges))))
		for _, event := range result.HardwareChanges {
			lines = append(lines, s.meta.Render(fmt.Sprintf("  +%dms %s %s -> %s", event.OffsetMs, event.Kind, event.Target, event.NewValue)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderComparison(physical, virtual domain.ExecutionResult, comparison domain.ComparisonResult, s styles) string {
	verdict := s.pass.Render("outputs match")
	if !comparison.OutputsMatch {
		verdict = s.fail.Render("outputs differ")
	}

	lines := []string{
		s.title.Render("comparison") + " " + verdict,
		s.meta.Render(fmt.Sprintf("similarity: %.0f%%  timing delta: %dms", comparison.Similarity*100, comparison.TimingDeltaMs)),
	}

	for _, discrepancy := range comparison.Discrepancies {
		lines = append(lines, s.discrep.Render("  ! "+discrepancy))
	}
	for _, recommendation := range comparison.Recommendations {
		lines = append(lines, s.advisory.Render("  > "+recommendation))
	}

	if !comparison.OutputsMatch {
		if diff := renderDiff(physical, virtual, s); diff != "" {
			lines = append(lines, s.section.Render(diff))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderDiff shows a unified diff of the two normalized outputs so the
// mismatch is inspectable line by line.
func renderDiff(physical, virtual domain.ExecutionResult, s styles) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(application.NormalizeOutput(physical.Output)),
		B:        difflib.SplitLines(application.NormalizeOutput(virtual.Output)),
		FromFile: "physical",
		ToFile:   "virtual",
		Context:  2,
	})
	if err != nil || diff == "" {
		return ""
	}

	lines := make([]string, 0, 8)
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			lines = append(lines, s.diffAdd.Render(line))
		case strings.HasPrefix(line, "-"):
			lines = append(lines, s.diffDel.Render(line))
		default:
			lines = append(lines, s.diffMeta.Render(line))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
