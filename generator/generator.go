// Package generator produces protocol test events, either fully specified by the caller
// (directed) or drawn from an explicit, seedable random source (randomized).
package generator

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/arloliu/go-synack/checksum"
	"github.com/arloliu/go-synack/fsm"
)

// DefaultValidProbability is the default probability that a randomized event carries the
// correct checksum.
const DefaultValidProbability = 0.8

// BadChecksum is the sentinel checksum emitted for corrupted randomized events.
// It decodes to 0x44 ('D'), which is not in fsm.Alphabet, so it never validates.
const BadChecksum = "BB"

var (
	// ErrInvalidProbability indicates a probability outside [0, 1].
	ErrInvalidProbability = errors.New("invalid probability, should be in range of [0, 1]")

	// ErrNilSource indicates that a nil random source was provided.
	ErrNilSource = errors.New("random source is nil")
)

// Event is one input presented to the runner.
type Event struct {
	Data     fsm.Symbol
	Checksum string
	Valid    bool
}

// Directed returns the event exactly as specified. No field is substituted.
func Directed(data fsm.Symbol, cs string, valid bool) Event {
	return Event{Data: data, Checksum: cs, Valid: valid}
}

// Randomized draws events uniformly from fsm.Alphabet.
//
// A Randomized is not safe for concurrent use; each driver owns its own.
type Randomized struct {
	rng       *rand.Rand
	validProb float64
}

// NewRandomized creates a Randomized generator drawing from src.
func NewRandomized(src rand.Source, opts ...Option) (*Randomized, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	g := &Randomized{
		rng:       rand.New(src),
		validProb: DefaultValidProbability,
	}

	for _, opt := range opts {
		if err := opt.apply(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// NewSeeded creates a Randomized generator over a PCG source derived from seed.
// Two generators with the same seed and options produce the same event sequence.
func NewSeeded(seed uint64, opts ...Option) (*Randomized, error) {
	return NewRandomized(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15), opts...)
}

// ValidProbability returns the probability of emitting a correct checksum.
func (g *Randomized) ValidProbability() float64 { return g.validProb }

// Next draws the next event. The symbol is drawn first, then the checksum outcome.
// Valid is always true.
func (g *Randomized) Next() Event {
	sym := fsm.Alphabet[g.rng.IntN(len(fsm.Alphabet))]

	cs := BadChecksum
	if g.rng.Float64() < g.validProb {
		cs = checksum.Compute(byte(sym))
	}

	return Event{Data: sym, Checksum: cs, Valid: true}
}

// Option represents a functional option for configuring a Randomized generator.
type Option interface {
	apply(*Randomized) error
}

type optFunc func(*Randomized) error

func (f optFunc) apply(g *Randomized) error { return f(g) }

// WithValidProbability sets the probability p in [0, 1] that an event carries the correct checksum.
func WithValidProbability(p float64) Option {
	return optFunc(func(g *Randomized) error {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return ErrInvalidProbability
		}
		g.validProb = p

		return nil
	})
}
