package trace_test

import (
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tidwall/wal"

	"github.com/arloliu/go-synack/checksum"
	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/logger"
	"github.com/arloliu/go-synack/runner"
	"github.com/arloliu/go-synack/trace"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newRunner(opts ...runner.Option) *runner.Runner {
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	opts = append([]runner.Option{
		runner.WithSeed(42),
		runner.WithClock(clock),
		runner.WithLogger(logger.NewNopMockLogger()),
	}, opts...)

	r, err := runner.New(opts...)
	Expect(err).NotTo(HaveOccurred())

	return r
}

func submit(r *runner.Runner, data string, good bool) {
	cs := "BB"
	if good {
		cs = checksum.Compute(data[0])
	}
	_, err := r.Submit(data, cs, true)
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Log", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "synack-trace")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(dir, "session")
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("writes the header first and fills in defaults", func() {
		tl, err := trace.Create(path, trace.Header{Seed: 9, ValidProbability: 0.8, Note: "smoke"})
		Expect(err).NotTo(HaveOccurred())
		Expect(tl.Close()).To(Succeed())

		tl, err = trace.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer tl.Close()

		h := tl.Header()
		Expect(h.Version).To(Equal(uint64(1)))
		Expect(h.Seed).To(Equal(uint64(9)))
		Expect(h.ValidProbability).To(Equal(0.8))
		Expect(h.Note).To(Equal("smoke"))
		Expect(h.Created.IsZero()).To(BeFalse())
		Expect(tl.Len()).To(BeZero())
	})

	It("records a runner session and reads it back in order", func() {
		tl, err := trace.Create(path, trace.Header{Seed: 42, Created: base})
		Expect(err).NotTo(HaveOccurred())

		r := newRunner(runner.WithRecorder(tl))
		submit(r, "S", true)
		submit(r, "K", false)
		r.Reset()
		submit(r, "Z", true)
		Expect(tl.Close()).To(Succeed())

		tl, err = trace.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer tl.Close()
		Expect(tl.Header().Created).To(BeTemporally("==", base))
		Expect(tl.Len()).To(Equal(4))

		it := tl.Iterator()
		kinds := []trace.EntryKind{}
		var packets []runner.Packet
		for {
			e, err := it.Next()
			if err == io.EOF {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			kinds = append(kinds, e.Kind)
			if e.Kind == trace.KindPacket {
				packets = append(packets, e.Packet)
			}
		}
		Expect(kinds).To(Equal([]trace.EntryKind{
			trace.KindPacket, trace.KindPacket, trace.KindReset, trace.KindPacket,
		}))

		Expect(packets).To(HaveLen(3))
		first := packets[0]
		Expect(first.ID).To(Equal(uint64(1)))
		Expect(first.Timestamp).To(BeTemporally("==", base.Add(time.Millisecond)))
		Expect(first.DataIn).To(Equal(fsm.Syn))
		Expect(first.ChecksumIn).To(Equal(checksum.Compute('S')))
		Expect(first.ValidIn).To(BeTrue())
		Expect(first.PreState).To(Equal(fsm.Idle))
		Expect(first.PostState).To(Equal(fsm.SynReceived))
		Expect(first.Edge).To(Equal(fsm.Edge{From: fsm.Idle, Class: fsm.ClassAdvance}))
		Expect(first.ChecksumOK).To(BeTrue())
		Expect(first.DataOut).To(Equal(fsm.SynAck))
		Expect(first.ValidOut).To(BeTrue())
		Expect(first.Expected).To(Equal(fsm.SynAck))
		Expect(first.Match).To(BeTrue())

		Expect(packets[1].ChecksumOK).To(BeFalse())
		Expect(packets[1].Edge.Class).To(Equal(fsm.ClassChecksumError))
		Expect(packets[2].ID).To(Equal(uint64(1)))

		all, err := tl.Packets()
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(Equal(packets))
	})

	It("appends after the last entry of a reopened log", func() {
		tl, err := trace.Create(path, trace.Header{})
		Expect(err).NotTo(HaveOccurred())
		Expect(tl.RecordReset()).To(Succeed())
		Expect(tl.Close()).To(Succeed())

		tl, err = trace.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer tl.Close()
		Expect(tl.RecordReset()).To(Succeed())
		Expect(tl.Len()).To(Equal(2))
	})

	It("refuses to create over an existing trace", func() {
		tl, err := trace.Create(path, trace.Header{})
		Expect(err).NotTo(HaveOccurred())
		Expect(tl.Close()).To(Succeed())

		_, err = trace.Create(path, trace.Header{})
		Expect(err).To(MatchError(trace.ErrNotEmpty))
	})

	It("rejects a log without header", func() {
		_, err := trace.Open(path)
		Expect(err).To(MatchError(trace.ErrCorrupt))
	})

	It("rejects undecodable entries", func() {
		raw, err := wal.Open(path, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.Write(1, []byte{0xff, 0xff, 0xff})).To(Succeed())
		Expect(raw.Close()).To(Succeed())

		_, err = trace.Open(path)
		Expect(err).To(MatchError(trace.ErrCorrupt))
	})

	It("fails to record after close", func() {
		tl, err := trace.Create(path, trace.Header{})
		Expect(err).NotTo(HaveOccurred())
		Expect(tl.Close()).To(Succeed())
		Expect(tl.Close()).To(Succeed())

		Expect(tl.Record(runner.Packet{ID: 1})).To(MatchError(trace.ErrClosed))
		Expect(tl.Sync()).To(MatchError(trace.ErrClosed))
	})
})
