package trace

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/arloliu/go-synack/generator"
	"github.com/arloliu/go-synack/runner"
)

// Divergence describes a replayed packet that differs from its recording.
type Divergence struct {
	// Index is the log index of the recorded packet.
	Index    uint64
	Recorded runner.Packet
	Replayed runner.Packet
	// Fields names the differing fields.
	Fields []string
}

func (d Divergence) String() string {
	return fmt.Sprintf("index %d (packet #%d): %v", d.Index, d.Recorded.ID, d.Fields)
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Packets     int
	Resets      int
	Divergences []Divergence
}

// OK reports whether the replay reproduced every recorded packet.
func (r *ReplayResult) OK() bool { return len(r.Divergences) == 0 }

// Replay resubmits every recorded event into r, honouring reset markers, and compares the
// produced packets with the recorded ones. Timestamps are not compared.
//
// r should be fresh. Its DUT decides the replayed outputs, so replaying with a different
// DUT than the recording surfaces output divergences.
func Replay(it *Iterator, r *runner.Runner) (*ReplayResult, error) {
	res := &ReplayResult{}

	for {
		e, err := it.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, errors.WithMessage(err, "replay")
		}

		switch e.Kind {
		case KindReset:
			r.Reset()
			res.Resets++
		case KindPacket:
			rec := e.Packet
			got := r.SubmitEvent(generator.Directed(rec.DataIn, rec.ChecksumIn, true))
			res.Packets++
			if fields := diffPacket(rec, *got); len(fields) > 0 {
				res.Divergences = append(res.Divergences, Divergence{
					Index:    e.Index,
					Recorded: rec,
					Replayed: *got,
					Fields:   fields,
				})
			}
		}
	}
}

func diffPacket(want, got runner.Packet) []string {
	var fields []string
	check := func(name string, same bool) {
		if !same {
			fields = append(fields, name)
		}
	}

	check("id", want.ID == got.ID)
	check("pre_state", want.PreState == got.PreState)
	check("post_state", want.PostState == got.PostState)
	check("edge", want.Edge == got.Edge)
	check("checksum_ok", want.ChecksumOK == got.ChecksumOK)
	check("expected", want.Expected == got.Expected)
	check("data_out", want.DataOut == got.DataOut)
	check("match", want.Match == got.Match)

	return fields
}
