package runner

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors returns Prometheus collectors reading the runner's metrics and session statistics.
// Register them with any prometheus.Registerer; the runner keeps no reference to the registry.
func (r *Runner) Collectors(namespace string, constLabels prometheus.Labels) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "runner",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "runner",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, f)
	}

	m := &r.metrics

	return []prometheus.Collector{
		counter("events_accepted_total", "Number of accepted events.", &m.SubmitCount),
		counter("events_gated_total", "Number of events dropped because valid_in was false.", &m.GatedCount),
		counter("events_rejected_total", "Number of submissions rejected with a domain error.", &m.RejectCount),
		counter("checksum_errors_total", "Number of accepted events with a bad checksum.", &m.ChecksumErrCount),
		counter("transitions_total", "Number of events that changed state.", &m.TransitionCount),
		counter("mismatches_total", "Number of packets whose output differed from the model.", &m.MismatchCount),
		counter("recorder_errors_total", "Number of recorder failures.", &m.RecordErrCount),
		counter("resets_total", "Number of session resets.", &m.ResetCount),
		gauge("state", "Current handshake state (0 idle, 1 syn received, 2 ack received).", func() float64 {
			return float64(r.CurrentState())
		}),
		gauge("input_coverage_percent", "Input alphabet coverage of the session.", func() float64 {
			return r.Stats().InputCoverage
		}),
		gauge("fsm_coverage_percent", "Transition edge coverage of the session.", func() float64 {
			return r.Stats().FSMCoverage
		}),
		gauge("pass_rate_percent", "Pass rate of the session.", func() float64 {
			return r.Stats().PassRate()
		}),
	}
}
