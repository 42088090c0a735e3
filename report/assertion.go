package report

import (
	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/runner"
)

// Verdict is the outcome of an assertion over a history.
type Verdict string

const (
	// Pass means the assertion was exercised and never violated.
	Pass Verdict = "PASS"
	// Fail means at least one packet violated the assertion.
	Fail Verdict = "FAIL"
	// Vacuous means no packet exercised the assertion.
	Vacuous Verdict = "VACUOUS"
)

// AssertionResult is the evaluation of one named assertion.
type AssertionResult struct {
	Name        string
	Description string
	Verdict     Verdict
	// Checked is the number of packets the assertion applied to.
	Checked int
	// Violations is the number of packets that violated it.
	Violations int
	// FirstViolation is the id of the first violating packet, or 0.
	FirstViolation uint64
}

// assertion is a property of a single packet.
// applies filters the packets the assertion is about; holds judges one of them.
type assertion struct {
	name        string
	description string
	applies     func(p runner.Packet) bool
	holds       func(p runner.Packet) bool
}

var assertions = []assertion{
	{
		name:        "p_syn_ack",
		description: "a valid SYN in IDLE answers A and moves to SYN_RECEIVED",
		applies: func(p runner.Packet) bool {
			return p.PreState == fsm.Idle && p.DataIn == fsm.Syn && p.ChecksumOK
		},
		holds: func(p runner.Packet) bool {
			return p.DataOut == fsm.SynAck && p.PostState == fsm.SynReceived
		},
	},
	{
		name:        "p_k_response",
		description: "a valid ACK in SYN_RECEIVED answers C and moves to ACK_RECEIVED",
		applies: func(p runner.Packet) bool {
			return p.PreState == fsm.SynReceived && p.DataIn == fsm.Ack && p.ChecksumOK
		},
		holds: func(p runner.Packet) bool {
			return p.DataOut == fsm.Complete && p.PostState == fsm.AckReceived
		},
	},
	{
		name:        "p_bad_checksum",
		description: "a bad checksum answers E and never changes state",
		applies:     func(p runner.Packet) bool { return !p.ChecksumOK },
		holds: func(p runner.Packet) bool {
			return p.DataOut == fsm.ErrorMarker && p.PostState == p.PreState
		},
	},
	{
		name:        "p_echo",
		description: "any other valid symbol is echoed without a state change",
		applies: func(p runner.Packet) bool {
			return p.ChecksumOK && p.Edge.Class == fsm.ClassOther
		},
		holds: func(p runner.Packet) bool {
			return p.DataOut == p.DataIn && p.PostState == p.PreState
		},
	},
}

// Evaluate checks the built-in assertions over history, plus p_state_continuity: every
// packet starts in the state its predecessor ended in, and ids are contiguous.
func Evaluate(history []runner.Packet) []AssertionResult {
	results := make([]AssertionResult, 0, len(assertions)+1)

	for _, a := range assertions {
		res := AssertionResult{Name: a.name, Description: a.description}
		for _, p := range history {
			if !a.applies(p) {
				continue
			}
			res.Checked++
			if !a.holds(p) {
				res.violate(p.ID)
			}
		}
		res.settle()
		results = append(results, res)
	}

	cont := AssertionResult{
		Name:        "p_state_continuity",
		Description: "each packet starts where the previous one ended, ids are contiguous",
	}
	for i := 1; i < len(history); i++ {
		prev, p := history[i-1], history[i]
		cont.Checked++
		if p.PreState != prev.PostState || p.ID != prev.ID+1 {
			cont.violate(p.ID)
		}
	}
	cont.settle()

	return append(results, cont)
}

func (r *AssertionResult) violate(id uint64) {
	if r.Violations == 0 {
		r.FirstViolation = id
	}
	r.Violations++
}

func (r *AssertionResult) settle() {
	switch {
	case r.Checked == 0:
		r.Verdict = Vacuous
	case r.Violations > 0:
		r.Verdict = Fail
	default:
		r.Verdict = Pass
	}
}
