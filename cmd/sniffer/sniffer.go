package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/gopacket"

	"github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/packets"
)

// flowKey identifies one direction of one TCP connection.
type flowKey struct {
	src, dst string
}

type sniffer struct {
	Writer     io.Writer
	serverPort uint16

	// Bytes received for each flow that do not yet form a complete packet.
	buffers map[flowKey][]byte
}

func newSniffer(w io.Writer, serverPort uint16) *sniffer {
	return &sniffer{
		Writer:     w,
		serverPort: serverPort,
		buffers:    make(map[flowKey][]byte),
	}
}

func (s *sniffer) handlePacket(packet gopacket.Packet) {
	transport := packet.TransportLayer()
	app := packet.ApplicationLayer()
	if transport == nil || app == nil {
		return
	}

	flow := transport.TransportFlow()
	dir := debug.Inbound
	if binary.BigEndian.Uint16(flow.Src().Raw()) == s.serverPort {
		dir = debug.Outbound
	}

	key := flowKey{src: flow.Src().String(), dst: flow.Dst().String()}
	if network := packet.NetworkLayer(); network != nil {
		nf := network.NetworkFlow()
		key = flowKey{src: nf.Src().String() + ":" + key.src, dst: nf.Dst().String() + ":" + key.dst}
	}

	fmt.Fprintf(s.Writer, "%s -> %s\n", key.src, key.dst)
	s.handleData(key, dir, app.Payload())
}

// handleData appends data to the flow's buffer and prints every complete packet in
// it. Packets split across segments are held until the rest arrives.
func (s *sniffer) handleData(key flowKey, dir debug.Direction, data []byte) {
	buf := append(s.buffers[key], data...)

	for len(buf) >= packets.HeaderSize {
		header := packets.DecodeHeader([packets.HeaderSize]byte{buf[0], buf[1]})
		size := packets.HeaderSize + packets.PayloadSize(header.Type())
		if len(buf) < size {
			break
		}
		fmt.Fprint(s.Writer, debug.FormatPacket(dir, buf[:size]))
		buf = buf[size:]
	}

	if len(buf) == 0 {
		delete(s.buffers, key)
		return
	}
	s.buffers[key] = buf
}
