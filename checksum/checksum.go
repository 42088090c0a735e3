// Package checksum implements the single-byte integrity tag carried with every protocol symbol.
//
// The tag is the symbol's byte value XOR 0xFF, rendered as two upper-case hex digits. It
// detects corruption of the symbol on the wire. It is not a security mechanism.
package checksum

import (
	"strings"

	"github.com/arloliu/go-synack/fsm"
)

// Size is the length in characters of a rendered checksum.
const Size = 2

const hexDigits = "0123456789ABCDEF"

// Compute returns the checksum of symbol as two upper-case hex digits.
func Compute(symbol byte) string {
	v := symbol ^ 0xFF
	return string([]byte{hexDigits[v>>4], hexDigits[v&0x0F]})
}

// Validate reports whether cs, case-normalized, equals Compute(symbol).
//
// Any string is accepted; strings that are not a rendered checksum simply do not match.
func Validate(symbol byte, cs string) bool {
	if len(cs) != Size {
		return false
	}

	return strings.ToUpper(cs) == Compute(symbol)
}

// ForString computes the checksum of the first code point of s.
//
// It returns fsm.ErrEmptySymbol or fsm.ErrSymbolOutOfRange for input outside the symbol domain.
func ForString(s string) (string, error) {
	sym, err := fsm.ParseSymbol(s)
	if err != nil {
		return "", err
	}

	return Compute(byte(sym)), nil
}
