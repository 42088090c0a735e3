package runner

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a runner.
// Counters survive Reset; they describe the runner's lifetime, not a session.
// They back the Prometheus collectors returned by Runner.Collectors.
type Metrics struct {
	// SubmitCount indicates the number of accepted events.
	SubmitCount atomic.Uint64
	// GatedCount indicates the number of events dropped because validIn was false.
	GatedCount atomic.Uint64
	// RejectCount indicates the number of submissions rejected with a domain error.
	RejectCount atomic.Uint64
	// ChecksumErrCount indicates the number of accepted events with a bad checksum.
	ChecksumErrCount atomic.Uint64
	// TransitionCount indicates the number of events that changed state.
	TransitionCount atomic.Uint64
	// MismatchCount indicates the number of packets whose DUT output differed from the model.
	MismatchCount atomic.Uint64
	// RecordErrCount indicates the number of recorder failures.
	RecordErrCount atomic.Uint64
	// ResetCount indicates the number of resets.
	ResetCount atomic.Uint64
}

func (m *Metrics) incSubmitCount() {
	m.SubmitCount.Add(1)
}

func (m *Metrics) incGatedCount() {
	m.GatedCount.Add(1)
}

func (m *Metrics) incRejectCount() {
	m.RejectCount.Add(1)
}

func (m *Metrics) incChecksumErrCount() {
	m.ChecksumErrCount.Add(1)
}

func (m *Metrics) incTransitionCount() {
	m.TransitionCount.Add(1)
}

func (m *Metrics) incMismatchCount() {
	m.MismatchCount.Add(1)
}

func (m *Metrics) incRecordErrCount() {
	m.RecordErrCount.Add(1)
}

func (m *Metrics) incResetCount() {
	m.ResetCount.Add(1)
}
