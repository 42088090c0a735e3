package runner

import (
	"math"
	"time"

	"github.com/arloliu/go-synack/generator"
	"github.com/arloliu/go-synack/logger"
)

// Recorder receives every packet a runner records and every reset, in order.
//
// Recorder methods are called while the runner holds its lock. A failing recorder never
// fails the event: the error is logged and counted in Metrics.RecordErrCount.
type Recorder interface {
	Record(p Packet) error
	RecordReset() error
}

// Config holds the construction parameters of a Runner.
type Config struct {
	// seed seeds the runner's own generator when no generator is supplied.
	// Defaults to the construction time in nanoseconds; the value is logged.
	seed    uint64
	hasSeed bool

	// validProb is the probability of a correct checksum for randomized events.
	// Defaults to generator.DefaultValidProbability.
	validProb float64

	// gen replaces the seeded generator entirely.
	gen *generator.Randomized

	// clock stamps packets. Defaults to time.Now.
	clock func() time.Time

	// dut produces actual outputs. Defaults to ConformantDUT.
	dut DUT

	// recorder, when set, receives every packet and reset.
	recorder Recorder

	logger logger.Logger
}

func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		validProb: generator.DefaultValidProbability,
		clock:     time.Now,
		dut:       ConformantDUT{},
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if !cfg.hasSeed {
		cfg.seed = uint64(time.Now().UnixNano()) //nolint:gosec // seed only needs to vary
	}

	if cfg.gen == nil {
		gen, err := generator.NewSeeded(cfg.seed, generator.WithValidProbability(cfg.validProb))
		if err != nil {
			return nil, err
		}
		cfg.gen = gen
	}

	return cfg, nil
}

// Option represents a functional option for configuring a Runner.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithSeed seeds the runner's randomized generator.
func WithSeed(seed uint64) Option {
	return newOptFunc("WithSeed", func(cfg *Config) error {
		cfg.seed = seed
		cfg.hasSeed = true

		return nil
	})
}

// WithValidProbability sets the probability in [0, 1] that a randomized event carries
// the correct checksum. It is ignored when WithGenerator is used.
func WithValidProbability(p float64) Option {
	return newOptFunc("WithValidProbability", func(cfg *Config) error {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return generator.ErrInvalidProbability
		}
		cfg.validProb = p

		return nil
	})
}

// WithGenerator makes RunRandom draw from gen.
func WithGenerator(gen *generator.Randomized) Option {
	return newOptFunc("WithGenerator", func(cfg *Config) error {
		if gen == nil {
			return ErrNilGenerator
		}
		cfg.gen = gen

		return nil
	})
}

// WithClock sets the function used to timestamp packets.
func WithClock(clock func() time.Time) Option {
	return newOptFunc("WithClock", func(cfg *Config) error {
		if clock == nil {
			return ErrNilClock
		}
		cfg.clock = clock

		return nil
	})
}

// WithDUT sets the device whose outputs are compared against the model.
func WithDUT(dut DUT) Option {
	return newOptFunc("WithDUT", func(cfg *Config) error {
		if dut == nil {
			return ErrNilDUT
		}
		cfg.dut = dut

		return nil
	})
}

// WithRecorder attaches a recorder. A nil recorder detaches it.
func WithRecorder(rec Recorder) Option {
	return newOptFunc("WithRecorder", func(cfg *Config) error {
		cfg.recorder = rec
		return nil
	})
}

// WithLogger sets the logger. Defaults to the package default logger.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return ErrNilLogger
		}
		cfg.logger = l

		return nil
	})
}
