package debug

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/tether/internal/packets"
)

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}

// Direction describes which way a logged packet was travelling.
type Direction string

const (
	Inbound  Direction = "recv"
	Outbound Direction = "send"
)

// FormatPacket renders a packet for humans: the decoded header, its type name and a
// hex dump of the raw bytes.
func FormatPacket(dir Direction, data []byte) string {
	var b strings.Builder
	if len(data) < packets.HeaderSize {
		fmt.Fprintf(&b, "[%s] truncated packet (%d bytes)\n", dir, len(data))
		b.WriteString(hex.Dump(data))
		return b.String()
	}

	hdr := packets.DecodeHeader([packets.HeaderSize]byte{data[0], data[1]})
	fmt.Fprintf(&b, "[%s] %s (%d bytes) ", dir, hdr.Type(), len(data))
	b.WriteString(dumper.Sdump(hdr))
	b.WriteString(hex.Dump(data))
	return b.String()
}

// LogPacket writes FormatPacket's output to the logger at debug level.
func LogPacket(logger logrus.FieldLogger, dir Direction, data []byte) {
	logger.Debug("\n" + FormatPacket(dir, data))
}
