package runner

import (
	"fmt"
	"time"

	"github.com/arloliu/go-synack/fsm"
)

// Packet is the immutable record of one accepted event.
type Packet struct {
	// ID starts at 1 after every reset and increases by one per packet.
	ID uint64
	// Timestamp is the creation time taken from the runner's clock.
	Timestamp time.Time

	DataIn     fsm.Symbol
	ChecksumIn string
	// ValidIn is always true on a recorded packet; gated events are never recorded.
	ValidIn bool

	// PreState is the state the event was processed in.
	PreState fsm.State
	// PostState is the state after the event.
	PostState fsm.State
	// Edge is the model edge the event exercised.
	Edge fsm.Edge

	ChecksumOK bool

	// DataOut and ValidOut are what the DUT produced.
	DataOut  fsm.Symbol
	ValidOut bool
	// Expected is the model's output for the event.
	Expected fsm.Symbol
	// Match is DataOut == Expected.
	Match bool
}

// IsError reports whether the packet carried a bad checksum.
func (p Packet) IsError() bool { return !p.ChecksumOK }

// String returns a compact one-line representation of the packet.
func (p Packet) String() string {
	return fmt.Sprintf("#%d %s in=%s cs=%s ok=%t out=%s exp=%s match=%t -> %s",
		p.ID, p.PreState, p.DataIn, p.ChecksumIn, p.ChecksumOK, p.DataOut, p.Expected, p.Match, p.PostState)
}

// TestStats are the cumulative statistics of a session.
type TestStats struct {
	Total int
	Pass  int
	Fail  int
	// InputCoverage and FSMCoverage are percentages in [0, 100].
	InputCoverage float64
	FSMCoverage   float64
}

// PassRate returns Pass/Total as a percentage, or 0 when no packet was recorded.
func (s TestStats) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}

	return float64(s.Pass) / float64(s.Total) * 100
}
