// Package script loads directed test plans written in Lua and runs them against a runner.
//
// A plan file returns a table:
//
//	return {
//	  name = "handshake",
//	  reset = true,
//	  steps = {
//	    { data = "S", auto_checksum = true, expect_out = "A", expect_state = "SYN_RECEIVED" },
//	    { data = "K", checksum = "00", expect_out = "E" },
//	    { data = "K", checksum = checksum("K"), expect_state = "ACK_RECEIVED" },
//	    { data = "X", valid = false },
//	    { random = 20 },
//	  },
//	}
//
// The global function checksum(sym) returns the valid checksum of sym and the global table
// alphabet lists the generator's input symbols.
package script

import (
	"errors"
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/arloliu/go-synack/checksum"
	"github.com/arloliu/go-synack/fsm"
)

var (
	// ErrNoSteps indicates a plan without steps.
	ErrNoSteps = errors.New("plan has no steps")
	// ErrInvalidStep indicates a malformed step.
	ErrInvalidStep = errors.New("invalid step")
	// ErrNotTable indicates that a script did not return a table.
	ErrNotTable = errors.New("script did not return a table")
)

// Plan is a directed test plan.
type Plan struct {
	Name        string
	Description string
	// Reset resets the runner before the first step.
	Reset bool
	Steps []Step
}

// Step is one directed event, or a burst of random events when Random is positive.
type Step struct {
	Data     string
	Checksum string
	// AutoChecksum fills in the valid checksum of Data.
	AutoChecksum bool
	// Valid is the input strobe. Nil means true.
	Valid  *bool
	Random int

	// ExpectOut is the expected latched output after the step, empty for none.
	ExpectOut string
	// ExpectState is the expected state name after the step, empty for none.
	ExpectState string
}

// IsRandom reports whether the step runs random events.
func (s Step) IsRandom() bool { return s.Random > 0 }

// ValidIn returns the step's input strobe.
func (s Step) ValidIn() bool { return s.Valid == nil || *s.Valid }

// ChecksumIn returns the checksum to submit with Data.
func (s Step) ChecksumIn() (string, error) {
	if !s.AutoChecksum {
		return s.Checksum, nil
	}

	return checksum.ForString(s.Data)
}

// Load reads a plan from a Lua file.
func Load(path string) (*Plan, error) {
	return load(func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString reads a plan from Lua source.
func LoadString(src string) (*Plan, error) {
	return load(func(L *lua.LState) error { return L.DoString(src) })
}

func load(exec func(L *lua.LState) error) (*Plan, error) {
	L := lua.NewState()
	defer L.Close()

	registerGlobals(L)

	if err := exec(L); err != nil {
		return nil, fmt.Errorf("failed to execute plan: %w", err)
	}

	table, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, ErrNotTable
	}

	var plan Plan
	if err := gluamapper.Map(table, &plan); err != nil {
		return nil, fmt.Errorf("failed to map plan: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %q: %w", plan.Name, err)
	}

	return &plan, nil
}

func registerGlobals(L *lua.LState) {
	L.SetGlobal("checksum", L.NewFunction(func(L *lua.LState) int {
		cs, err := checksum.ForString(L.CheckString(1))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		L.Push(lua.LString(cs))

		return 1
	}))

	alphabet := L.NewTable()
	for _, sym := range fsm.Alphabet {
		alphabet.Append(lua.LString(sym.String()))
	}
	L.SetGlobal("alphabet", alphabet)
}

// Validate checks that the plan has steps and that every step is well formed.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return ErrNoSteps
	}

	for i, s := range p.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return nil
}

func (s Step) validate() error {
	if s.Random < 0 {
		return fmt.Errorf("%w: negative random count %d", ErrInvalidStep, s.Random)
	}

	if s.IsRandom() {
		if s.Data != "" || s.Checksum != "" || s.AutoChecksum || s.Valid != nil {
			return fmt.Errorf("%w: random step carries directed fields", ErrInvalidStep)
		}
		if s.ExpectOut != "" {
			return fmt.Errorf("%w: random step cannot expect an output", ErrInvalidStep)
		}
	} else {
		if s.ValidIn() {
			if _, err := fsm.ParseSymbol(s.Data); err != nil {
				return fmt.Errorf("%w: data: %w", ErrInvalidStep, err)
			}
		}
		if s.AutoChecksum && s.Checksum != "" {
			return fmt.Errorf("%w: checksum and auto_checksum are exclusive", ErrInvalidStep)
		}
	}

	if s.ExpectOut != "" {
		if _, err := fsm.ParseSymbol(s.ExpectOut); err != nil {
			return fmt.Errorf("%w: expect_out: %w", ErrInvalidStep, err)
		}
	}
	if s.ExpectState != "" {
		if _, err := fsm.ParseState(s.ExpectState); err != nil {
			return fmt.Errorf("%w: expect_state: %w", ErrInvalidStep, err)
		}
	}

	return nil
}
