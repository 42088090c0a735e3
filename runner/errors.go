package runner

import "errors"

var (
	// ErrNilGenerator indicates that a nil randomized generator was provided.
	ErrNilGenerator = errors.New("generator is nil")

	// ErrNilDUT indicates that a nil DUT was provided.
	ErrNilDUT = errors.New("dut is nil")

	// ErrNilLogger indicates that a nil logger was provided.
	ErrNilLogger = errors.New("logger is nil")

	// ErrNilClock indicates that a nil clock function was provided.
	ErrNilClock = errors.New("clock is nil")
)
