// Package trace persists runner sessions and turns them into other artifacts.
//
// A trace is an append-only write-ahead log (tidwall/wal). The first entry is a Header,
// every following entry is either a recorded packet or a reset marker. *Log implements
// runner.Recorder, so a session is traced by passing it to runner.WithRecorder:
//
//	tl, err := trace.Create(dir, trace.Header{Seed: seed})
//	...
//	r, err := runner.New(runner.WithSeed(seed), runner.WithRecorder(tl))
//
// A trace is never resumed. It is read back with an Iterator, replayed into a fresh
// runner with Replay, or exported to a pcap capture with WritePcap.
package trace
