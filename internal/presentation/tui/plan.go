package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/furrow/pkg/domain"
)

// RenderPlan formats a drafted plan for the approval prompt: numbered
// descriptions with risk badges and the shell command under each step.
// Commands the sandbox would refuse are flagged inline so the user sees it
// before approving.
func RenderPlan(plan []domain.PlanStep) string {
	p := termenv.ColorProfile()
	var sb strings.Builder

	fmt.Fprintf(&sb, "Proposed plan (%s):\n", countSteps(len(plan)))
	for i, step := range plan {
		fmt.Fprintf(&sb, "  %d. %s %s\n", i+1, step.Description, riskBadge(p, step.RiskLevel))
		if step.Command == "" {
			continue
		}
		line := termenv.String("$ " + step.Command).Foreground(p.Color("#22d3ee"))
		if _, blocked := domain.BlockedCommand(step.Command); blocked {
			line = termenv.String("$ " + step.Command + "  (blocked by safety policy)").
				Foreground(p.Color("#ef4444"))
		}
		fmt.Fprintf(&sb, "     %s\n", line)
	}
	return sb.String()
}

// RenderHistory formats execution records after a plan ran: one line per
// step with its command and exit status, the captured output indented
// below.
func RenderHistory(history []domain.ExecutionRecord) string {
	p := termenv.ColorProfile()
	var sb strings.Builder

	for _, rec := range history {
		command := "(no command)"
		if rec.Command != nil {
			command = *rec.Command
		}
		fmt.Fprintf(&sb, "  %s $ %s\n", exitBadge(p, rec), command)
		for _, line := range strings.Split(strings.TrimRight(rec.Output, "\n"), "\n") {
			if line == "" {
				continue
			}
			fmt.Fprintf(&sb, "      %s\n", line)
		}
	}
	return sb.String()
}

func countSteps(n int) string {
	if n == 1 {
		return "1 step"
	}
	return fmt.Sprintf("%d steps", n)
}

func riskBadge(p termenv.Profile, risk domain.RiskLevel) termenv.Style {
	badge := termenv.String("[" + string(risk) + "]")
	switch risk {
	case domain.RiskLow:
		return badge.Foreground(p.Color("#22c55e"))
	case domain.RiskMedium:
		return badge.Foreground(p.Color("#eab308"))
	case domain.RiskHigh:
		return badge.Foreground(p.Color("#f97316"))
	case domain.RiskCritical:
		return badge.Foreground(p.Color("#ef4444")).Bold()
	}
	return badge
}

func exitBadge(p termenv.Profile, rec domain.ExecutionRecord) termenv.Style {
	switch {
	case rec.Command == nil:
		return termenv.String("[skip]").Faint()
	case rec.ExitCode == 0:
		return termenv.String("[ok]").Foreground(p.Color("#22c55e"))
	default:
		return termenv.String(fmt.Sprintf("[exit %d]", rec.ExitCode)).Foreground(p.Color("#ef4444"))
	}
}
