package fsm

import "errors"

var (
	// ErrEmptySymbol indicates that an input symbol was empty.
	ErrEmptySymbol = errors.New("empty input symbol")

	// ErrSymbolOutOfRange indicates that an input symbol is not a single-byte code point.
	ErrSymbolOutOfRange = errors.New("input symbol out of range, should be in [0x00, 0xFF]")

	// ErrUnknownState is returned when a state name cannot be parsed.
	ErrUnknownState = errors.New("unknown handshake state")
)
