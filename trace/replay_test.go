package trace_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/runner"
	"github.com/arloliu/go-synack/trace"
)

var _ = Describe("Replay", func() {
	var (
		dir string
		tl  *trace.Log
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "synack-replay")
		Expect(err).NotTo(HaveOccurred())

		tl, err = trace.Create(filepath.Join(dir, "session"), trace.Header{Seed: 42})
		Expect(err).NotTo(HaveOccurred())

		r := newRunner(runner.WithRecorder(tl))
		submit(r, "S", true)
		submit(r, "X", false)
		submit(r, "K", true)
		r.Reset()
		for range 20 {
			r.RunRandom()
		}
	})

	AfterEach(func() {
		tl.Close()
		os.RemoveAll(dir)
	})

	It("reproduces a session in a fresh runner", func() {
		fresh := newRunner()

		res, err := trace.Replay(tl.Iterator(), fresh)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK()).To(BeTrue(), "divergences: %v", res.Divergences)
		Expect(res.Packets).To(Equal(23))
		Expect(res.Resets).To(Equal(1))
		Expect(fresh.Len()).To(Equal(20))
	})

	It("reports divergences of a different device", func() {
		stuck := runner.DUTFunc(func(s runner.Stimulus) runner.Response {
			if s.Expected == fsm.SynAck {
				return runner.Response{Data: fsm.ErrorMarker, Valid: true}
			}
			return runner.Response{Data: s.Expected, Valid: true}
		})
		fresh := newRunner(runner.WithDUT(stuck))

		res, err := trace.Replay(tl.Iterator(), fresh)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK()).To(BeFalse())

		d := res.Divergences[0]
		Expect(d.Index).To(Equal(uint64(2)))
		Expect(d.Recorded.ID).To(Equal(uint64(1)))
		Expect(d.Fields).To(Equal([]string{"data_out", "match"}))
		Expect(d.Replayed.DataOut).To(Equal(fsm.ErrorMarker))
		Expect(d.String()).To(ContainSubstring("packet #1"))
	})

	It("replays a session recorded into a reopened log from Idle", func() {
		path := filepath.Join(dir, "resumed")
		first, err := trace.Create(path, trace.Header{Seed: 42})
		Expect(err).NotTo(HaveOccurred())
		r := newRunner(runner.WithRecorder(first))
		submit(r, "S", true)
		submit(r, "K", true)
		Expect(first.Close()).To(Succeed())

		second, err := trace.Open(path)
		Expect(err).NotTo(HaveOccurred())
		r = newRunner(runner.WithRecorder(second))
		submit(r, "S", true)
		submit(r, "Z", true)
		Expect(second.Len()).To(Equal(5))

		it := second.Iterator()
		kinds := []trace.EntryKind{}
		for {
			e, err := it.Next()
			if err != nil {
				break
			}
			kinds = append(kinds, e.Kind)
		}
		Expect(kinds).To(Equal([]trace.EntryKind{
			trace.KindPacket, trace.KindPacket, trace.KindReset, trace.KindPacket, trace.KindPacket,
		}))

		fresh := newRunner()
		res, err := trace.Replay(second.Iterator(), fresh)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK()).To(BeTrue(), "divergences: %v", res.Divergences)
		Expect(res.Packets).To(Equal(4))
		Expect(res.Resets).To(Equal(1))
		Expect(fresh.CurrentState()).To(Equal(fsm.SynReceived))
		Expect(second.Close()).To(Succeed())
	})
})
