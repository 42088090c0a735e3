package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arloliu/go-synack/report"
	"github.com/arloliu/go-synack/script"
	"github.com/arloliu/go-synack/trace"
)

var (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#777777")
	colorSuccess = lipgloss.Color("#43BF6D")
	colorWarn    = lipgloss.Color("#F4A956")
	colorError   = lipgloss.Color("#FF5F5F")

	styleTitle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(30)

	stylePass = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorWarn)

	styleFail = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func panel(title string, lines ...string) string {
	body := append([]string{styleTitle.Render(title)}, lines...)
	return stylePanel.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func row(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, styleLabel.Render(label), value)
}

func mark(ok bool) string {
	if ok {
		return stylePass.Render("✓")
	}

	return styleFail.Render("✗")
}

func gradeStyle(g report.Grade) lipgloss.Style {
	switch g {
	case report.GradeExcellent, report.GradeGood:
		return stylePass
	case report.GradeFair:
		return styleWarn
	default:
		return styleFail
	}
}

func percent(v float64, g report.Grade) string {
	return fmt.Sprintf("%6.2f%% %s", v, gradeStyle(g).Render(string(g)))
}

func verdict(v report.Verdict) string {
	switch v {
	case report.Pass:
		return stylePass.Render(string(v))
	case report.Fail:
		return styleFail.Render(string(v))
	default:
		return styleWarn.Render(string(v))
	}
}

func renderSummary(seed uint64, s report.Summary) string {
	session := panel("Session",
		row("state", s.State.String()),
		row("seed", fmt.Sprintf("%d", seed)),
		row("tests", fmt.Sprintf("%d (%d pass, %d fail)", s.Stats.Total, s.Stats.Pass, s.Stats.Fail)),
		row("pass rate", percent(s.PassRate, s.PassGrade)),
		row("trace", fmt.Sprintf("%d ok, %d failed, %d checksum errors",
			s.Trace.OK, s.Trace.Failed, s.Trace.ChecksumErrors)),
	)

	missing := make([]string, 0, len(s.MissingInputs))
	for _, sym := range s.MissingInputs {
		missing = append(missing, sym.String())
	}
	covLines := []string{
		row("input coverage", percent(s.Stats.InputCoverage, s.InputGrade)),
		row("fsm coverage", percent(s.Stats.FSMCoverage, s.FSMGrade)),
		row("missing inputs", strings.Join(missing, " ")),
	}
	for _, e := range s.Edges {
		covLines = append(covLines, row(e.Edge.String(), mark(e.Covered)))
	}
	cov := panel("Coverage", covLines...)

	goals := panel("Goals",
		row(fmt.Sprintf("input >= %.0f%%", s.Goals.InputCoverage), mark(s.GoalStatus.InputCoverage)),
		row(fmt.Sprintf("fsm >= %.0f%%", s.Goals.FSMCoverage), mark(s.GoalStatus.FSMCoverage)),
		row(fmt.Sprintf("pass >= %.0f%%", s.Goals.PassRate), mark(s.GoalStatus.PassRate)),
		row(fmt.Sprintf("tests >= %d", s.Goals.MinTests), mark(s.GoalStatus.MinTests)),
	)

	assertLines := make([]string, 0, len(s.Assertions))
	for _, a := range s.Assertions {
		line := fmt.Sprintf("%s %d checked", verdict(a.Verdict), a.Checked)
		if a.Violations > 0 {
			line += fmt.Sprintf(", %d violations, first #%d", a.Violations, a.FirstViolation)
		}
		assertLines = append(assertLines, row(a.Name, line))
	}
	asserts := panel("Assertions", assertLines...)

	recentLines := make([]string, 0, len(s.Recent))
	for _, p := range s.Recent {
		recentLines = append(recentLines, p.String())
	}
	if len(recentLines) == 0 {
		recentLines = append(recentLines, styleLabel.Render("no packets"))
	}
	recent := panel(fmt.Sprintf("Last %d packets", s.RecentCapacity), recentLines...)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, session, cov),
		lipgloss.JoinHorizontal(lipgloss.Top, goals, asserts),
		recent,
	)
}

func renderScript(res *script.Result) string {
	lines := make([]string, 0, len(res.Steps)+1)
	for _, st := range res.Steps {
		label := fmt.Sprintf("step %d", st.Index)
		if st.Passed() {
			lines = append(lines, row(label, fmt.Sprintf("%s %d packets", stylePass.Render("PASS"), len(st.Packets))))
			continue
		}
		lines = append(lines, row(label, styleFail.Render("FAIL")+" "+strings.Join(st.Failures, "; ")))
	}
	lines = append(lines, row("result", fmt.Sprintf("%d passed, %d failed", res.Passed, res.Failed)))

	return panel(fmt.Sprintf("Plan %s", res.Plan), lines...)
}

func renderReplay(h trace.Header, res *trace.ReplayResult) string {
	lines := []string{
		row("recorded", h.Created.Format("2006-01-02 15:04:05 MST")),
		row("seed", fmt.Sprintf("%d", h.Seed)),
		row("packets", fmt.Sprintf("%d", res.Packets)),
		row("resets", fmt.Sprintf("%d", res.Resets)),
		row("divergences", fmt.Sprintf("%d %s", len(res.Divergences), mark(res.OK()))),
	}
	for _, d := range res.Divergences {
		lines = append(lines, styleFail.Render(d.String()))
	}

	return panel("Replay", lines...)
}
