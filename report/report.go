// Package report derives presentation-ready summaries from a runner's query API.
//
// Nothing in this package mutates a runner. Every figure is computed from History, Stats,
// Coverage and CurrentState snapshots.
package report

import (
	"github.com/arloliu/go-synack/coverage"
	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/internal/util"
	"github.com/arloliu/go-synack/runner"
)

// DefaultWindow is the number of most recent packets kept in Summary.Recent.
const DefaultWindow = 10

// Source is the read-only view of a session. *runner.Runner implements it.
type Source interface {
	CurrentState() fsm.State
	History() []runner.Packet
	Stats() runner.TestStats
	Coverage() coverage.Snapshot
}

var _ Source = (*runner.Runner)(nil)

// Grade is a qualitative rating of a percentage.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// GradeOf rates a percentage: Excellent from 90, Good from 80, Fair from 60, otherwise Poor.
func GradeOf(percent float64) Grade {
	switch {
	case percent >= 90:
		return GradeExcellent
	case percent >= 80:
		return GradeGood
	case percent >= 60:
		return GradeFair
	default:
		return GradePoor
	}
}

// Goals are the session targets.
type Goals struct {
	InputCoverage float64 `yaml:"input_coverage"`
	FSMCoverage   float64 `yaml:"fsm_coverage"`
	PassRate      float64 `yaml:"pass_rate"`
	MinTests      int     `yaml:"min_tests"`
}

// DefaultGoals returns 90% input and FSM coverage, 95% pass rate and at least 50 tests.
func DefaultGoals() Goals {
	return Goals{
		InputCoverage: 90,
		FSMCoverage:   90,
		PassRate:      95,
		MinTests:      50,
	}
}

// GoalStatus reports which goals a session meets.
type GoalStatus struct {
	InputCoverage bool
	FSMCoverage   bool
	PassRate      bool
	MinTests      bool
}

// All reports whether every goal is met.
func (g GoalStatus) All() bool {
	return g.InputCoverage && g.FSMCoverage && g.PassRate && g.MinTests
}

// Check evaluates stats against the goals.
func (g Goals) Check(stats runner.TestStats) GoalStatus {
	return GoalStatus{
		InputCoverage: stats.InputCoverage >= g.InputCoverage,
		FSMCoverage:   stats.FSMCoverage >= g.FSMCoverage,
		PassRate:      stats.PassRate() >= g.PassRate,
		MinTests:      stats.Total >= g.MinTests,
	}
}

// TraceSummary counts packets by outcome.
type TraceSummary struct {
	Total int
	// OK counts packets that matched and carried a valid checksum.
	OK int
	// Failed counts packets that did not match or carried a bad checksum.
	Failed int
	// ChecksumErrors counts packets with a bad checksum.
	ChecksumErrors int
}

// Summarize counts the packets of a history.
func Summarize(history []runner.Packet) TraceSummary {
	s := TraceSummary{Total: len(history)}
	for _, p := range history {
		if p.Match && !p.IsError() {
			s.OK++
		} else {
			s.Failed++
		}
		if p.IsError() {
			s.ChecksumErrors++
		}
	}

	return s
}

// EdgeStatus is the coverage status of one model edge.
type EdgeStatus struct {
	Edge    fsm.Edge
	Covered bool
}

// Summary is the complete derived view of a session.
type Summary struct {
	State          fsm.State
	Stats          runner.TestStats
	PassRate       float64
	PassGrade      Grade
	InputGrade     Grade
	FSMGrade       Grade
	Goals          Goals
	GoalStatus     GoalStatus
	Trace          TraceSummary
	Edges          []EdgeStatus
	MissingInputs  []fsm.Symbol
	Assertions     []AssertionResult
	Recent         []runner.Packet
	RecentCapacity int
}

// Build derives a Summary from src. A non-positive window selects DefaultWindow.
func Build(src Source, goals Goals, window int) Summary {
	if window <= 0 {
		window = DefaultWindow
	}

	history := src.History()
	stats := src.Stats()
	cov := src.Coverage()

	edges := make([]EdgeStatus, 0, fsm.EdgeCount())
	for _, e := range fsm.Edges() {
		edges = append(edges, EdgeStatus{Edge: e, Covered: cov.EdgeCovered(e)})
	}

	return Summary{
		State:          src.CurrentState(),
		Stats:          stats,
		PassRate:       stats.PassRate(),
		PassGrade:      GradeOf(stats.PassRate()),
		InputGrade:     GradeOf(stats.InputCoverage),
		FSMGrade:       GradeOf(stats.FSMCoverage),
		Goals:          goals,
		GoalStatus:     goals.Check(stats),
		Trace:          Summarize(history),
		Edges:          edges,
		MissingInputs:  cov.MissingInputs,
		Assertions:     Evaluate(history),
		Recent:         Window(history, window),
		RecentCapacity: window,
	}
}

// Window returns a copy of the last n packets of history.
func Window(history []runner.Packet, n int) []runner.Packet {
	return util.Tail(history, n)
}
