package trace

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/runner"
)

// formatVersion is bumped on incompatible changes of the entry layout.
const formatVersion = 1

// EntryKind tells what a log entry holds.
type EntryKind uint8

const (
	KindHeader EntryKind = iota + 1
	KindPacket
	KindReset
)

func (k EntryKind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindPacket:
		return "packet"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Header describes the session a trace was recorded from.
type Header struct {
	Version          uint64
	Seed             uint64
	ValidProbability float64
	Created          time.Time
	Note             string
}

// Entry is one decoded log entry after the header.
type Entry struct {
	// Index is the position of the entry in the log. The header is index 1.
	Index  uint64
	Kind   EntryKind
	Packet runner.Packet
}

// top-level field numbers
const (
	fieldHeader protowire.Number = 1
	fieldPacket protowire.Number = 2
	fieldReset  protowire.Number = 3
)

// header field numbers
const (
	hdrVersion protowire.Number = iota + 1
	hdrSeed
	hdrValidProb
	hdrCreated
	hdrNote
)

// packet field numbers
const (
	pktID protowire.Number = iota + 1
	pktTimestamp
	pktDataIn
	pktChecksumIn
	pktValidIn
	pktPreState
	pktPostState
	pktClass
	pktChecksumOK
	pktDataOut
	pktValidOut
	pktExpected
	pktMatch
)

func encodeHeader(h Header) []byte {
	var b []byte
	b = protowire.AppendTag(b, hdrVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Version)
	b = protowire.AppendTag(b, hdrSeed, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Seed)
	b = protowire.AppendTag(b, hdrValidProb, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(h.ValidProbability))
	b = protowire.AppendTag(b, hdrCreated, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(h.Created.UnixNano()))
	if h.Note != "" {
		b = protowire.AppendTag(b, hdrNote, protowire.BytesType)
		b = protowire.AppendString(b, h.Note)
	}

	var out []byte
	out = protowire.AppendTag(out, fieldHeader, protowire.BytesType)

	return protowire.AppendBytes(out, b)
}

func encodePacket(p runner.Packet) []byte {
	var b []byte
	appendUint := func(num protowire.Number, v uint64) {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}

	appendUint(pktID, p.ID)
	appendUint(pktTimestamp, protowire.EncodeZigZag(p.Timestamp.UnixNano()))
	appendUint(pktDataIn, uint64(p.DataIn))
	b = protowire.AppendTag(b, pktChecksumIn, protowire.BytesType)
	b = protowire.AppendString(b, p.ChecksumIn)
	appendUint(pktValidIn, protowire.EncodeBool(p.ValidIn))
	appendUint(pktPreState, uint64(p.PreState))
	appendUint(pktPostState, uint64(p.PostState))
	appendUint(pktClass, uint64(p.Edge.Class))
	appendUint(pktChecksumOK, protowire.EncodeBool(p.ChecksumOK))
	appendUint(pktDataOut, uint64(p.DataOut))
	appendUint(pktValidOut, protowire.EncodeBool(p.ValidOut))
	appendUint(pktExpected, uint64(p.Expected))
	appendUint(pktMatch, protowire.EncodeBool(p.Match))

	var out []byte
	out = protowire.AppendTag(out, fieldPacket, protowire.BytesType)

	return protowire.AppendBytes(out, b)
}

func encodeReset() []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldReset, protowire.BytesType)

	return protowire.AppendBytes(out, nil)
}

// decodeEntry decodes one raw entry. It returns the entry kind and, depending on it, the
// decoded header or packet.
func decodeEntry(data []byte) (EntryKind, Header, runner.Packet, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 {
		return 0, Header{}, runner.Packet{}, corrupt("entry tag", protowire.ParseError(n))
	}
	if typ != protowire.BytesType {
		return 0, Header{}, runner.Packet{}, fmt.Errorf("%w: entry wire type %d", ErrCorrupt, typ)
	}
	body, m := protowire.ConsumeBytes(data[n:])
	if m < 0 {
		return 0, Header{}, runner.Packet{}, corrupt("entry body", protowire.ParseError(m))
	}

	switch num {
	case fieldHeader:
		h, err := decodeHeader(body)
		return KindHeader, h, runner.Packet{}, err
	case fieldPacket:
		p, err := decodePacket(body)
		return KindPacket, Header{}, p, err
	case fieldReset:
		return KindReset, Header{}, runner.Packet{}, nil
	default:
		return 0, Header{}, runner.Packet{}, fmt.Errorf("%w: unknown entry field %d", ErrCorrupt, num)
	}
}

func decodeHeader(b []byte) (Header, error) {
	var h Header
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == hdrVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.Version = v
			return n, nil
		case num == hdrSeed && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.Seed = v
			return n, nil
		case num == hdrValidProb && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			h.ValidProbability = math.Float64frombits(v)
			return n, nil
		case num == hdrCreated && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.Created = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
			return n, nil
		case num == hdrNote && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			h.Note = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})

	return h, err
}

func decodePacket(b []byte) (runner.Packet, error) {
	var p runner.Packet
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == pktChecksumIn && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			p.ChecksumIn = v
			return n, nil
		}
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case pktID:
			p.ID = v
		case pktTimestamp:
			p.Timestamp = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
		case pktDataIn:
			p.DataIn = fsm.Symbol(v)
		case pktValidIn:
			p.ValidIn = protowire.DecodeBool(v)
		case pktPreState:
			p.PreState = fsm.State(v)
		case pktPostState:
			p.PostState = fsm.State(v)
		case pktClass:
			p.Edge.Class = fsm.Class(v)
		case pktChecksumOK:
			p.ChecksumOK = protowire.DecodeBool(v)
		case pktDataOut:
			p.DataOut = fsm.Symbol(v)
		case pktValidOut:
			p.ValidOut = protowire.DecodeBool(v)
		case pktExpected:
			p.Expected = fsm.Symbol(v)
		case pktMatch:
			p.Match = protowire.DecodeBool(v)
		}
		return n, nil
	})
	p.Edge.From = p.PreState

	return p, err
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupt("field tag", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return corrupt(fmt.Sprintf("field %d", num), protowire.ParseError(m))
		}
		b = b[m:]
	}

	return nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, what, err)
}
