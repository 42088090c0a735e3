package fsm

import "fmt"

// Class partitions input events by their effect on the current state.
type Class uint8

const (
	// ClassAdvance is the symbol that moves the current state forward (S in Idle, K in SynReceived).
	ClassAdvance Class = iota
	// ClassOther is any other symbol with a valid checksum. It echoes and self-loops.
	ClassOther
	// ClassChecksumError is any symbol with a bad checksum. It emits the error marker and self-loops.
	ClassChecksumError
)

// String returns string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassAdvance:
		return "advance"
	case ClassOther:
		return "other"
	case ClassChecksumError:
		return "checksum-error"
	default:
		return "unknown"
	}
}

// Edge is a transition of the model: the state an event was processed in and its class.
type Edge struct {
	From  State
	Class Class
}

// String returns the edge as "STATE/class".
func (e Edge) String() string {
	return fmt.Sprintf("%s/%s", e.From, e.Class)
}

// Index returns the position of the edge in Edges(), or -1 if it is not an edge of the model.
func (e Edge) Index() int {
	for i, edge := range edges {
		if edge == e {
			return i
		}
	}

	return -1
}

// Result is the outcome of one model step.
type Result struct {
	Next   State
	Output Symbol
	Edge   Edge
}

// Changed returns if the step moved the model to a different state.
func (r Result) Changed() bool { return r.Edge.From != r.Next }

type rule struct {
	next State
	echo bool
	out  Symbol
}

// transitions is keyed by every edge the model can take. Tests assert that Classify never
// yields an edge missing from this table.
var transitions = map[Edge]rule{
	{Idle, ClassAdvance}:              {next: SynReceived, out: SynAck},
	{Idle, ClassOther}:                {next: Idle, echo: true},
	{Idle, ClassChecksumError}:        {next: Idle, out: ErrorMarker},
	{SynReceived, ClassAdvance}:       {next: AckReceived, out: Complete},
	{SynReceived, ClassOther}:         {next: SynReceived, echo: true},
	{SynReceived, ClassChecksumError}: {next: SynReceived, out: ErrorMarker},
	{AckReceived, ClassOther}:         {next: AckReceived, echo: true},
	{AckReceived, ClassChecksumError}: {next: AckReceived, out: ErrorMarker},
}

var edges = []Edge{
	{Idle, ClassAdvance},
	{Idle, ClassOther},
	{Idle, ClassChecksumError},
	{SynReceived, ClassAdvance},
	{SynReceived, ClassOther},
	{SynReceived, ClassChecksumError},
	{AckReceived, ClassOther},
	{AckReceived, ClassChecksumError},
}

// Edges returns every edge of the model in a fixed order, including the checksum-error
// self-loop of each state.
func Edges() []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)

	return out
}

// EdgeCount is the number of distinct edges of the model.
func EdgeCount() int { return len(edges) }

// AdvanceSymbol returns the symbol that advances state, and false for the absorbing state.
func AdvanceSymbol(state State) (Symbol, bool) {
	switch state {
	case Idle:
		return Syn, true
	case SynReceived:
		return Ack, true
	default:
		return 0, false
	}
}

// Classify returns the class of an event in the given state. A checksum failure takes
// precedence over the symbol.
func Classify(state State, sym Symbol, checksumOK bool) Class {
	if !checksumOK {
		return ClassChecksumError
	}

	if adv, ok := AdvanceSymbol(state); ok && sym == adv {
		return ClassAdvance
	}

	return ClassOther
}

// Step applies one event to the model. It is a pure function.
//
// An unknown state is treated as Idle, so the function is total.
func Step(state State, sym Symbol, checksumOK bool) Result {
	if state > AckReceived {
		state = Idle
	}

	edge := Edge{From: state, Class: Classify(state, sym, checksumOK)}
	r := transitions[edge]

	out := r.out
	if r.echo {
		out = sym
	}

	return Result{Next: r.next, Output: out, Edge: edge}
}
