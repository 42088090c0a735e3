package runner

import (
	"github.com/arloliu/go-synack/fsm"
)

// Stimulus is what the runner presents to the device under test for one accepted event.
type Stimulus struct {
	Data       fsm.Symbol
	Checksum   string
	ChecksumOK bool
	PreState   fsm.State
	// Expected is the model output the DUT should produce.
	Expected fsm.Symbol
}

// Response is the DUT's output for one stimulus.
type Response struct {
	Data  fsm.Symbol
	Valid bool
}

// DUT produces the actual output compared against the model's expected output.
//
// Respond runs without the runner's state lock, so it may query the runner (CurrentState,
// History, Stats). It must not submit events or reset the runner it serves.
type DUT interface {
	Respond(stim Stimulus) Response
}

// DUTFunc adapts a function to the DUT interface.
type DUTFunc func(stim Stimulus) Response

// Respond calls f(stim).
func (f DUTFunc) Respond(stim Stimulus) Response { return f(stim) }

// ConformantDUT simulates a device that always answers with the expected output, so every
// recorded packet matches. It is the runner's default.
type ConformantDUT struct{}

// Respond returns the expected output with the valid strobe set.
func (ConformantDUT) Respond(stim Stimulus) Response {
	return Response{Data: stim.Expected, Valid: true}
}
