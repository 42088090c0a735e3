package fsm

import "unicode/utf8"

// Symbol is a single protocol byte.
type Symbol byte

// Protocol symbols with a fixed meaning.
const (
	// Syn opens the handshake from Idle.
	Syn Symbol = 'S'
	// Ack completes the handshake from SynReceived.
	Ack Symbol = 'K'
	// SynAck is the model's answer to Syn.
	SynAck Symbol = 'A'
	// Complete is the model's answer to Ack.
	Complete Symbol = 'C'
	// ErrorMarker is emitted for any event with a bad checksum.
	ErrorMarker Symbol = 'E'
)

// Alphabet is the fixed input alphabet used by randomized generation and input coverage.
var Alphabet = [...]Symbol{'S', 'K', 'Z', 'X', 'Y'}

// AlphabetIndex returns the position of s in Alphabet, or -1.
func AlphabetIndex(s Symbol) int {
	for i, a := range Alphabet {
		if a == s {
			return i
		}
	}

	return -1
}

// String returns the symbol as a one character string.
func (s Symbol) String() string { return string(rune(s)) }

// ParseSymbol converts caller input to a Symbol. Only the first code point is considered.
//
// It returns ErrEmptySymbol for an empty string and ErrSymbolOutOfRange when the first
// code point does not fit in a byte.
func ParseSymbol(str string) (Symbol, error) {
	if str == "" {
		return 0, ErrEmptySymbol
	}

	r, _ := utf8.DecodeRuneInString(str)
	if r > 0xFF {
		return 0, ErrSymbolOutOfRange
	}

	return Symbol(r), nil
}
