// Package coverage accounts for which inputs and model edges a session has exercised.
package coverage

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/arloliu/go-synack/fsm"
)

// Tracker holds the visited-input and visited-edge sets of one session.
//
// Both percentages are derived from the sets, so they never decrease until Reset and
// never exceed 100. A Tracker is not safe for concurrent use; the runner serializes access.
type Tracker struct {
	inputs *bitset.BitSet
	edges  *bitset.BitSet
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		inputs: bitset.New(uint(len(fsm.Alphabet))),
		edges:  bitset.New(uint(fsm.EdgeCount())),
	}
}

// Observe marks sym and edge as visited. Symbols outside fsm.Alphabet do not count towards
// input coverage, but their edge still counts.
func (t *Tracker) Observe(sym fsm.Symbol, edge fsm.Edge) {
	if i := fsm.AlphabetIndex(sym); i >= 0 {
		t.inputs.Set(uint(i))
	}
	if i := edge.Index(); i >= 0 {
		t.edges.Set(uint(i))
	}
}

// InputCoverage returns the percentage of fsm.Alphabet seen at least once.
func (t *Tracker) InputCoverage() float64 {
	return percent(t.inputs.Count(), uint(len(fsm.Alphabet)))
}

// FSMCoverage returns the percentage of model edges exercised at least once.
func (t *Tracker) FSMCoverage() float64 {
	return percent(t.edges.Count(), uint(fsm.EdgeCount()))
}

// Reset clears both visited sets.
func (t *Tracker) Reset() {
	t.inputs.ClearAll()
	t.edges.ClearAll()
}

// Snapshot is a point-in-time copy of the tracker's sets.
type Snapshot struct {
	CoveredInputs []fsm.Symbol
	MissingInputs []fsm.Symbol
	CoveredEdges  []fsm.Edge
	MissingEdges  []fsm.Edge
	InputCoverage float64
	FSMCoverage   float64
}

// EdgeCovered reports whether edge appears in CoveredEdges.
func (s Snapshot) EdgeCovered(edge fsm.Edge) bool {
	for _, e := range s.CoveredEdges {
		if e == edge {
			return true
		}
	}

	return false
}

// Snapshot returns the covered and missing inputs and edges in model order.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{
		InputCoverage: t.InputCoverage(),
		FSMCoverage:   t.FSMCoverage(),
	}

	for i, sym := range fsm.Alphabet {
		if t.inputs.Test(uint(i)) {
			snap.CoveredInputs = append(snap.CoveredInputs, sym)
		} else {
			snap.MissingInputs = append(snap.MissingInputs, sym)
		}
	}

	for i, edge := range fsm.Edges() {
		if t.edges.Test(uint(i)) {
			snap.CoveredEdges = append(snap.CoveredEdges, edge)
		} else {
			snap.MissingEdges = append(snap.MissingEdges, edge)
		}
	}

	return snap
}

func percent(n, total uint) float64 {
	if total == 0 {
		return 0
	}
	p := float64(n) / float64(total) * 100
	if p > 100 {
		return 100
	}

	return p
}
