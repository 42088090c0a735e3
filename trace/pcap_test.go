package trace_test

import (
	"bytes"
	"io"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/arloliu/go-synack/runner"
	"github.com/arloliu/go-synack/trace"
)

var _ = Describe("WritePcap", func() {
	It("writes a request and a response frame per packet", func() {
		r := newRunner()
		submit(r, "S", true)
		submit(r, "K", false)
		submit(r, "K", true)
		submit(r, "Y", true)

		var buf bytes.Buffer
		Expect(trace.WritePcap(&buf, r.History())).To(Succeed())

		reader, err := pcapgo.NewReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(reader.LinkType()).To(Equal(layers.LinkTypeEthernet))

		type seen struct {
			syn, ack, rst, psh bool
			payload            string
			toDUT              bool
		}
		var frames []seen
		for {
			data, _, err := reader.ReadPacketData()
			if err == io.EOF {
				break
			}
			Expect(err).NotTo(HaveOccurred())

			pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
			tcpLayer := pkt.Layer(layers.LayerTypeTCP)
			Expect(tcpLayer).NotTo(BeNil())
			tcp := tcpLayer.(*layers.TCP)
			frames = append(frames, seen{
				syn:     tcp.SYN,
				ack:     tcp.ACK,
				rst:     tcp.RST,
				psh:     tcp.PSH,
				payload: string(tcp.Payload),
				toDUT:   tcp.DstPort == 7,
			})
		}

		Expect(frames).To(HaveLen(8))
		Expect(frames[0]).To(Equal(seen{syn: true, payload: "SAC", toDUT: true}))
		Expect(frames[1]).To(Equal(seen{syn: true, ack: true, payload: "A"}))
		Expect(frames[2]).To(Equal(seen{ack: true, payload: "KBB", toDUT: true}))
		Expect(frames[3]).To(Equal(seen{rst: true, payload: "E"}))
		Expect(frames[4]).To(Equal(seen{ack: true, payload: "KB4", toDUT: true}))
		Expect(frames[5]).To(Equal(seen{ack: true, payload: "C"}))
		Expect(frames[6]).To(Equal(seen{psh: true, ack: true, payload: "YA6", toDUT: true}))
		Expect(frames[7]).To(Equal(seen{psh: true, ack: true, payload: "Y"}))
	})

	It("writes only the file header for an empty session", func() {
		var buf bytes.Buffer
		Expect(trace.WritePcap(&buf, []runner.Packet{})).To(Succeed())
		Expect(buf.Len()).To(Equal(24))
	})
})
