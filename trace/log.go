package trace

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/wal"

	"github.com/arloliu/go-synack/runner"
)

// headerIndex is the wal index of the header entry. tidwall/wal starts counting at 1.
const headerIndex = 1

// Log is an append-only session trace.
type Log struct {
	mu     sync.Mutex
	log    *wal.Log
	header Header
	// last is the index of the most recently written entry.
	last   uint64
	closed bool
	// resumed is set on a reopened log holding entries until the next session starts with
	// a reset marker.
	resumed bool
}

var _ runner.Recorder = (*Log)(nil)

func openWAL(path string) (*wal.Log, error) {
	log, err := wal.Open(path, &wal.Options{
		NoSync: true,
		NoCopy: true,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not open trace log")
	}

	return log, nil
}

// Create creates a new trace at path and writes header as its first entry.
//
// It returns ErrNotEmpty when path already holds a trace. A zero header Version is set to
// the current format version, a zero Created to the current time.
func Create(path string, header Header) (*Log, error) {
	log, err := openWAL(path)
	if err != nil {
		return nil, err
	}

	last, err := log.LastIndex()
	if err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not read last index")
	}
	if last != 0 {
		_ = log.Close()
		return nil, errors.WithMessagef(ErrNotEmpty, "path %s", path)
	}

	if header.Version == 0 {
		header.Version = formatVersion
	}
	if header.Created.IsZero() {
		header.Created = time.Now().UTC()
	}

	if err := log.Write(headerIndex, encodeHeader(header)); err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not write header")
	}

	return &Log{log: log, header: header, last: headerIndex}, nil
}

// Open opens an existing trace for reading. Recording into an opened trace appends after
// its last entry; the first packet recorded is preceded by a reset marker, so a replay
// starts the new session from Idle.
func Open(path string) (*Log, error) {
	log, err := openWAL(path)
	if err != nil {
		return nil, err
	}

	first, err := log.FirstIndex()
	if err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not read first index")
	}
	if first != headerIndex {
		_ = log.Close()
		return nil, errors.WithMessagef(ErrCorrupt, "missing header in %s", path)
	}

	last, err := log.LastIndex()
	if err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not read last index")
	}

	data, err := log.Read(headerIndex)
	if err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not read header")
	}
	kind, header, _, err := decodeEntry(data)
	if err != nil {
		_ = log.Close()
		return nil, errors.WithMessage(err, "could not decode header")
	}
	if kind != KindHeader {
		_ = log.Close()
		return nil, errors.WithMessagef(ErrCorrupt, "first entry is a %s", kind)
	}

	return &Log{log: log, header: header, last: last, resumed: last > headerIndex}, nil
}

// Header returns the session header.
func (l *Log) Header() Header {
	return l.header
}

// Len returns the number of entries after the header.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return int(l.last - headerIndex)
}

// Record appends a packet entry.
func (l *Log) Record(p runner.Packet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.resumed {
		if err := l.writeLocked(encodeReset()); err != nil {
			return err
		}
		l.resumed = false
	}

	return l.writeLocked(encodePacket(p))
}

// RecordReset appends a reset marker.
func (l *Log) RecordReset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.resumed = false

	return l.writeLocked(encodeReset())
}

func (l *Log) writeLocked(data []byte) error {
	if err := l.log.Write(l.last+1, data); err != nil {
		return errors.WithMessagef(err, "could not write index %d", l.last+1)
	}
	l.last++

	return nil
}

// Iterator returns an iterator over the entries present when it is called.
func (l *Log) Iterator() *Iterator {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &Iterator{l: l, next: headerIndex + 1, last: l.last}
}

// Packets reads every recorded packet in order, skipping reset markers.
func (l *Log) Packets() ([]runner.Packet, error) {
	it := l.Iterator()
	var packets []runner.Packet
	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			return packets, nil
		}
		if err != nil {
			return nil, err
		}
		if e.Kind == KindPacket {
			packets = append(packets, e.Packet)
		}
	}
}

// Sync flushes the log to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	return l.log.Sync()
}

// Close closes the log. Further calls are no-ops.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	return l.log.Close()
}

func (l *Log) read(index uint64) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	return l.log.Read(index)
}

// Iterator walks the entries of a Log after the header.
type Iterator struct {
	l    *Log
	next uint64
	last uint64
}

// Next returns the next entry, or io.EOF after the last one.
func (it *Iterator) Next() (Entry, error) {
	if it.next > it.last {
		return Entry{}, io.EOF
	}

	index := it.next
	data, err := it.l.read(index)
	if err != nil {
		return Entry{}, errors.WithMessagef(err, "could not read index %d", index)
	}

	kind, _, p, err := decodeEntry(data)
	if err != nil {
		return Entry{}, errors.WithMessagef(err, "index %d", index)
	}
	if kind == KindHeader {
		return Entry{}, errors.WithMessagef(ErrCorrupt, "unexpected header at index %d", index)
	}
	it.next++

	return Entry{Index: index, Kind: kind, Packet: p}, nil
}
