package script

import (
	"fmt"

	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/runner"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	// Index is the 1-based position of the step in the plan.
	Index int
	Step  Step
	// Packets are the packets the step produced. A gated step produces none.
	Packets []runner.Packet
	// Failures describe unmet expectations. Empty means the step passed.
	Failures []string
}

// Passed reports whether every expectation of the step held.
func (s StepResult) Passed() bool { return len(s.Failures) == 0 }

// Result is the outcome of a plan run.
type Result struct {
	Plan   string
	Steps  []StepResult
	Passed int
	Failed int
}

// OK reports whether every step passed.
func (r *Result) OK() bool { return r.Failed == 0 }

// Run executes the plan against r. Expectation failures are reported in the result; an
// error is only returned when the runner rejects a step's input.
func (p *Plan) Run(r *runner.Runner) (*Result, error) {
	if p.Reset {
		r.Reset()
	}

	res := &Result{Plan: p.Name, Steps: make([]StepResult, 0, len(p.Steps))}
	for i, s := range p.Steps {
		sr, err := runStep(r, s)
		if err != nil {
			return res, fmt.Errorf("plan %q step %d: %w", p.Name, i+1, err)
		}
		sr.Index = i + 1

		if sr.Passed() {
			res.Passed++
		} else {
			res.Failed++
		}
		res.Steps = append(res.Steps, sr)
	}

	return res, nil
}

func runStep(r *runner.Runner, s Step) (StepResult, error) {
	sr := StepResult{Step: s}

	if s.IsRandom() {
		for range s.Random {
			sr.Packets = append(sr.Packets, r.RunRandom())
		}
	} else {
		cs, err := s.ChecksumIn()
		if err != nil {
			return sr, err
		}
		pkt, err := r.Submit(s.Data, cs, s.ValidIn())
		if err != nil {
			return sr, err
		}
		if pkt != nil {
			sr.Packets = append(sr.Packets, *pkt)
		}
	}

	if s.ExpectOut != "" {
		want, _ := fsm.ParseSymbol(s.ExpectOut)
		if got, _ := r.Outputs(); got != want {
			sr.Failures = append(sr.Failures, fmt.Sprintf("output %s, expected %s", got, want))
		}
	}
	if s.ExpectState != "" {
		want, _ := fsm.ParseState(s.ExpectState)
		if got := r.CurrentState(); got != want {
			sr.Failures = append(sr.Failures, fmt.Sprintf("state %s, expected %s", got, want))
		}
	}

	return sr, nil
}
