// Package runner drives the handshake protocol model one event at a time and records
// every accepted event as an immutable Packet.
//
// A Runner is the only stateful component of the engine. It owns the current state, the
// append-only packet history, the session statistics and the coverage sets. Callers reach
// that state only through the Runner's methods; queries return copies.
//
// Example Usage:
//
//	r, err := runner.New(runner.WithSeed(42))
//	if err != nil {
//	    return err
//	}
//
//	// directed event: SYN with its correct checksum
//	pkt, err := r.Submit("S", checksum.Compute('S'), true)
//
//	// randomized event from the runner's seeded generator
//	pkt2 := r.RunRandom()
//
//	stats := r.Stats()
//	r.Reset()
//
// Gated input (validIn false) is dropped before it reaches the model: no packet, no change.
// A checksum mismatch is a recorded outcome, never an error.
package runner
