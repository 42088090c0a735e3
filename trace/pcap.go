package trace

import (
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/runner"
)

// Endpoints of the synthetic capture. The tester is the client, the DUT the server.
var (
	testerMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dutMAC    = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	testerIP  = net.IPv4(10, 0, 0, 1).To4()
	dutIP     = net.IPv4(10, 0, 0, 2).To4()
)

const (
	testerPort = 40000
	dutPort    = 7
	snapLen    = 65535
)

// tcpFlags maps a handshake symbol onto the TCP flags it stands for.
type tcpFlags struct {
	syn, ack, rst, psh bool
}

func flagsFor(sym fsm.Symbol) tcpFlags {
	switch sym {
	case fsm.Syn:
		return tcpFlags{syn: true}
	case fsm.Ack, fsm.Complete:
		return tcpFlags{ack: true}
	case fsm.SynAck:
		return tcpFlags{syn: true, ack: true}
	case fsm.ErrorMarker:
		return tcpFlags{rst: true}
	default:
		return tcpFlags{psh: true, ack: true}
	}
}

// WritePcap writes packets as a classic pcap capture. Each packet becomes two frames: the
// tester's request carrying DataIn and ChecksumIn, then the DUT's response carrying DataOut.
// Symbols are mapped onto TCP flags (S is SYN, K and C are ACK, A is SYN|ACK, E is RST,
// anything else PSH|ACK) so the capture reads naturally in packet analyzers.
func WritePcap(w io.Writer, packets []runner.Packet) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return errors.WithMessage(err, "could not write pcap header")
	}

	var testerSeq, dutSeq uint32 = 1000, 5000
	for _, p := range packets {
		req, err := frame(testerMAC, dutMAC, testerIP, dutIP, testerPort, dutPort,
			testerSeq, dutSeq, flagsFor(p.DataIn), append([]byte{byte(p.DataIn)}, p.ChecksumIn...))
		if err != nil {
			return errors.WithMessagef(err, "could not encode request of packet #%d", p.ID)
		}
		testerSeq += uint32(1 + len(p.ChecksumIn))

		resp, err := frame(dutMAC, testerMAC, dutIP, testerIP, dutPort, testerPort,
			dutSeq, testerSeq, flagsFor(p.DataOut), []byte{byte(p.DataOut)})
		if err != nil {
			return errors.WithMessagef(err, "could not encode response of packet #%d", p.ID)
		}
		dutSeq++

		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Unix(0, 0).UTC()
		}
		if err := writeFrame(pw, ts, req); err != nil {
			return errors.WithMessagef(err, "could not write request of packet #%d", p.ID)
		}
		if err := writeFrame(pw, ts.Add(time.Microsecond), resp); err != nil {
			return errors.WithMessagef(err, "could not write response of packet #%d", p.ID)
		}
	}

	return nil
}

func writeFrame(pw *pcapgo.Writer, ts time.Time, data []byte) error {
	return pw.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

func frame(srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort uint16,
	seq, ack uint32, f tcpFlags, payload []byte,
) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		Ack:     ack,
		SYN:     f.syn,
		ACK:     f.ack,
		RST:     f.rst,
		PSH:     f.psh,
		Window:  1024,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
