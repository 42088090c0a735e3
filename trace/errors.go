package trace

import "errors"

var (
	// ErrNotEmpty is returned by Create when the target log already holds entries.
	ErrNotEmpty = errors.New("trace log is not empty")
	// ErrCorrupt is returned when an entry cannot be decoded.
	ErrCorrupt = errors.New("trace log is corrupt")
	// ErrClosed is returned when recording into a closed log.
	ErrClosed = errors.New("trace log is closed")
)
