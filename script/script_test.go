package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/logger"
	"github.com/arloliu/go-synack/runner"
)

const handshakePlan = `
return {
  name = "handshake",
  description = "complete handshake with one corrupted ACK",
  reset = true,
  steps = {
    { data = "S", auto_checksum = true, expect_out = "A", expect_state = "SYN_RECEIVED" },
    { data = "K", checksum = "00", expect_out = "E", expect_state = "SYN_RECEIVED" },
    { data = "K", checksum = checksum("K"), expect_out = "C", expect_state = "ACK_RECEIVED" },
    { data = "Z", valid = false, expect_out = "C" },
    { data = alphabet[4], auto_checksum = true, expect_out = "X" },
    { random = 5, expect_state = "ACK_RECEIVED" },
  },
}
`

func newRunner(t *testing.T, opts ...runner.Option) *runner.Runner {
	t.Helper()

	opts = append([]runner.Option{runner.WithSeed(3), runner.WithLogger(logger.NewNopMockLogger())}, opts...)
	r, err := runner.New(opts...)
	require.NoError(t, err)

	return r
}

func TestLoadString(t *testing.T) {
	require := require.New(t)

	plan, err := LoadString(handshakePlan)
	require.NoError(err)
	require.Equal("handshake", plan.Name)
	require.Equal("complete handshake with one corrupted ACK", plan.Description)
	require.True(plan.Reset)
	require.Len(plan.Steps, 6)

	s := plan.Steps[0]
	require.Equal("S", s.Data)
	require.True(s.AutoChecksum)
	require.Nil(s.Valid)
	require.True(s.ValidIn())
	require.Equal("A", s.ExpectOut)
	require.Equal("SYN_RECEIVED", s.ExpectState)

	require.Equal("B4", plan.Steps[2].Checksum)
	require.NotNil(plan.Steps[3].Valid)
	require.False(plan.Steps[3].ValidIn())
	require.Equal("X", plan.Steps[4].Data)
	require.True(plan.Steps[5].IsRandom())
	require.Equal(5, plan.Steps[5].Random)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.lua")
	require.NoError(t, os.WriteFile(path, []byte(handshakePlan), 0o600))

	plan, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "handshake", plan.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.lua"))
	require.Error(t, err)
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target error
	}{
		{"not a table", `return 1`, ErrNotTable},
		{"no steps", `return { name = "empty" }`, ErrNoSteps},
		{"missing data", `return { steps = { { checksum = "AC" } } }`, ErrInvalidStep},
		{"exclusive checksum", `return { steps = { { data = "S", checksum = "AC", auto_checksum = true } } }`, ErrInvalidStep},
		{"random with data", `return { steps = { { random = 2, data = "S" } } }`, ErrInvalidStep},
		{"random with output", `return { steps = { { random = 2, expect_out = "A" } } }`, ErrInvalidStep},
		{"negative random", `return { steps = { { random = -1 } } }`, ErrInvalidStep},
		{"bad state", `return { steps = { { data = "S", expect_state = "CLOSED" } } }`, ErrInvalidStep},
		{"out of range", `return { steps = { { data = "€" } } }`, ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			require.ErrorIs(t, err, tt.target)
		})
	}

	_, err := LoadString(`return {`)
	require.Error(t, err)

	_, err = LoadString(`return { steps = { { data = checksum("") } } }`)
	require.Error(t, err)
}

func TestPlan_Run(t *testing.T) {
	require := require.New(t)

	plan, err := LoadString(handshakePlan)
	require.NoError(err)

	r := newRunner(t)
	// leftover state is discarded by reset = true
	_, err = r.Submit("S", "AC", true)
	require.NoError(err)

	res, err := plan.Run(r)
	require.NoError(err)
	require.True(res.OK(), "%+v", res.Steps)
	require.Equal("handshake", res.Plan)
	require.Equal(6, res.Passed)
	require.Len(res.Steps, 6)

	require.Len(res.Steps[0].Packets, 1)
	require.Equal(uint64(1), res.Steps[0].Packets[0].ID)
	require.Empty(res.Steps[3].Packets)
	require.Len(res.Steps[5].Packets, 5)
	require.Equal(9, r.Len())
	require.Equal(fsm.AckReceived, r.CurrentState())
}

func TestPlan_RunReportsFailures(t *testing.T) {
	plan := &Plan{
		Name: "wrong",
		Steps: []Step{
			{Data: "S", AutoChecksum: true, ExpectOut: "C", ExpectState: "ACK_RECEIVED"},
			{Data: "K", AutoChecksum: true, ExpectState: "ACK_RECEIVED"},
		},
	}
	require.NoError(t, plan.Validate())

	res, err := plan.Run(newRunner(t))
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, 1, res.Passed)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{
		"output A, expected C",
		"state SYN_RECEIVED, expected ACK_RECEIVED",
	}, res.Steps[0].Failures)
	require.True(t, res.Steps[1].Passed())
}

func TestPlan_RunRejectedInput(t *testing.T) {
	plan := &Plan{Name: "raw", Steps: []Step{{Data: "", Checksum: "00"}}}

	res, err := plan.Run(newRunner(t))
	require.ErrorIs(t, err, fsm.ErrEmptySymbol)
	require.Empty(t, res.Steps)
}
