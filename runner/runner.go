package runner

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-synack/checksum"
	"github.com/arloliu/go-synack/coverage"
	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/generator"
	"github.com/arloliu/go-synack/internal/util"
	"github.com/arloliu/go-synack/logger"
)

// Runner executes test events against the protocol model.
//
// Events and resets are serialized, so an auto-run scheduler and a reader may share one
// Runner. Independent drivers should each own a Runner.
type Runner struct {
	// submitMu serializes events and resets. It is held while the DUT responds.
	submitMu sync.Mutex
	// mu protects the fields below. It is never held while the DUT responds.
	mu       sync.Mutex
	cfg      *Config
	logger   logger.Logger
	state    fsm.State
	history  []Packet
	stats    TestStats
	tracker  *coverage.Tracker
	lastID   uint64
	lastOut  fsm.Symbol
	validOut bool
	handlers []fsm.StateChangeHandler
	metrics  Metrics
}

// New creates a Runner in the Idle state with an empty history.
func New(opts ...Option) (*Runner, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:     cfg,
		logger:  cfg.logger.With("component", "runner"),
		state:   fsm.Idle,
		tracker: coverage.NewTracker(),
	}
	r.logger.Info("runner created", "seed", cfg.seed, "valid_probability", cfg.gen.ValidProbability())

	return r, nil
}

// Seed returns the seed of the runner's own generator.
func (r *Runner) Seed() uint64 { return r.cfg.seed }

// OnStateChange registers handlers invoked after an event or a reset changes the state.
// Handlers run synchronously on the caller's goroutine, after the runner's lock is released.
func (r *Runner) OnStateChange(handlers ...fsm.StateChangeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handlers...)
}

// Submit processes one directed event.
//
// When validIn is false the event is gated: Submit returns (nil, nil) and nothing changes.
// Otherwise dataIn must hold at least one code point in [0x00, 0xFF]; only the first is used.
// A violation returns fsm.ErrEmptySymbol or fsm.ErrSymbolOutOfRange and nothing changes.
func (r *Runner) Submit(dataIn string, checksumIn string, validIn bool) (*Packet, error) {
	if !validIn {
		r.gate(dataIn)
		return nil, nil //nolint:nilnil // gated input is a no-op, not an error
	}

	sym, err := fsm.ParseSymbol(dataIn)
	if err != nil {
		r.metrics.incRejectCount()
		return nil, fmt.Errorf("submit %q: %w", dataIn, err)
	}

	p := r.accept(generator.Event{Data: sym, Checksum: checksumIn, Valid: true})

	return &p, nil
}

// SubmitEvent processes ev. It returns nil when ev.Valid is false.
func (r *Runner) SubmitEvent(ev generator.Event) *Packet {
	if !ev.Valid {
		r.gate(ev.Data.String())
		return nil
	}

	p := r.accept(ev)

	return &p
}

// RunRandom draws one event from the runner's generator and processes it.
// Randomized events are never gated, so a packet is always produced.
func (r *Runner) RunRandom() Packet {
	return r.acceptFrom(r.cfg.gen)
}

// RunRandomWith draws one event from gen instead of the runner's own generator.
// A nil gen falls back to the runner's own generator.
func (r *Runner) RunRandomWith(gen *generator.Randomized) Packet {
	if gen == nil {
		gen = r.cfg.gen
	}

	return r.acceptFrom(gen)
}

// Reset returns the runner to Idle, discards the history and zeroes statistics and coverage.
// Packet ids restart at 1. Reset cannot fail.
func (r *Runner) Reset() {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	r.mu.Lock()
	prev := r.state
	r.state = fsm.Idle
	r.history = nil
	r.stats = TestStats{}
	r.tracker.Reset()
	r.lastID = 0
	r.lastOut = 0
	r.validOut = false
	r.metrics.incResetCount()
	r.record(func(rec Recorder) error { return rec.RecordReset() })
	handlers := r.handlers
	r.mu.Unlock()

	r.logger.Info("runner reset", "prev_state", prev)
	r.notify(handlers, prev, fsm.Idle)
}

// CurrentState returns the current handshake state.
func (r *Runner) CurrentState() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// History returns a copy of the recorded packets in append order.
func (r *Runner) History() []Packet {
	r.mu.Lock()
	defer r.mu.Unlock()

	return util.CloneSlice(r.history, 0)
}

// Len returns the number of recorded packets.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.history)
}

// Stats returns a snapshot of the session statistics.
func (r *Runner) Stats() TestStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

// Coverage returns a snapshot of the covered and missing inputs and edges.
func (r *Runner) Coverage() coverage.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tracker.Snapshot()
}

// Outputs returns the last DUT output and its valid strobe. Both are cleared by Reset.
func (r *Runner) Outputs() (fsm.Symbol, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastOut, r.validOut
}

// Metrics returns the runner's lifetime counters.
func (r *Runner) Metrics() *Metrics {
	return &r.metrics
}

func (r *Runner) gate(dataIn string) {
	r.metrics.incGatedCount()
	r.logger.Debug("gated event dropped", "data_in", dataIn)
}

func (r *Runner) accept(ev generator.Event) Packet {
	r.submitMu.Lock()
	p, handlers := r.process(ev)
	r.submitMu.Unlock()

	r.notify(handlers, p.PreState, p.PostState)

	return p
}

// acceptFrom draws the next event of gen and processes it. Generators are not safe for
// concurrent use, so the draw happens under submitMu.
func (r *Runner) acceptFrom(gen *generator.Randomized) Packet {
	r.submitMu.Lock()
	p, handlers := r.process(gen.Next())
	r.submitMu.Unlock()

	r.notify(handlers, p.PreState, p.PostState)

	return p
}

// process must be called with r.submitMu held. The DUT responds without r.mu, so it may
// query the runner. It returns the handlers to notify.
func (r *Runner) process(ev generator.Event) (Packet, []fsm.StateChangeHandler) {
	r.mu.Lock()
	pre := r.state
	r.mu.Unlock()

	ok := checksum.Validate(byte(ev.Data), ev.Checksum)
	res := fsm.Step(pre, ev.Data, ok)

	resp := r.cfg.dut.Respond(Stimulus{
		Data:       ev.Data,
		Checksum:   ev.Checksum,
		ChecksumOK: ok,
		PreState:   pre,
		Expected:   res.Output,
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.commitLocked(ev, pre, ok, res, resp)
}

// commitLocked must be called with r.mu held. It records the packet of an event.
func (r *Runner) commitLocked(ev generator.Event, pre fsm.State, ok bool, res fsm.Result, resp Response,
) (Packet, []fsm.StateChangeHandler) {
	r.lastID++
	p := Packet{
		ID:         r.lastID,
		Timestamp:  r.cfg.clock(),
		DataIn:     ev.Data,
		ChecksumIn: ev.Checksum,
		ValidIn:    true,
		PreState:   pre,
		PostState:  res.Next,
		Edge:       res.Edge,
		ChecksumOK: ok,
		DataOut:    resp.Data,
		ValidOut:   resp.Valid,
		Expected:   res.Output,
		Match:      resp.Data == res.Output,
	}

	r.history = append(r.history, p)
	r.state = res.Next
	r.lastOut, r.validOut = resp.Data, resp.Valid

	r.tracker.Observe(ev.Data, res.Edge)
	r.stats.Total++
	if p.Match {
		r.stats.Pass++
	} else {
		r.stats.Fail++
		r.metrics.incMismatchCount()
	}
	r.stats.InputCoverage = r.tracker.InputCoverage()
	r.stats.FSMCoverage = r.tracker.FSMCoverage()

	r.metrics.incSubmitCount()
	if !ok {
		r.metrics.incChecksumErrCount()
	}
	if res.Changed() {
		r.metrics.incTransitionCount()
	}

	if r.logger.Level() == logger.DebugLevel {
		r.logger.Debug("packet recorded",
			"id", p.ID, "pre_state", p.PreState, "data_in", p.DataIn, "checksum_in", p.ChecksumIn,
			"checksum_ok", p.ChecksumOK, "expected", p.Expected, "data_out", p.DataOut,
			"match", p.Match, "post_state", p.PostState,
		)
	}

	r.record(func(rec Recorder) error { return rec.Record(p) })

	if !res.Changed() {
		return p, nil
	}

	return p, r.handlers
}

// record must be called with r.mu held.
func (r *Runner) record(fn func(Recorder) error) {
	if r.cfg.recorder == nil {
		return
	}

	if err := fn(r.cfg.recorder); err != nil {
		r.metrics.incRecordErrCount()
		r.logger.Error("recorder failed", "error", err)
	}
}

func (r *Runner) notify(handlers []fsm.StateChangeHandler, prev fsm.State, next fsm.State) {
	if prev == next {
		return
	}

	for _, h := range handlers {
		if h != nil {
			h(prev, next)
		}
	}
}
