// Packet header and type definitions shared by every packet.
package packets

import "errors"

// HeaderSize is the length in bytes of the version + encoding/type prefix
// that precedes every packet.
const HeaderSize = 2

// Protocol versions written into the first header byte.
const (
	AuthRequestVersion  = 1
	AuthResponseVersion = 1
	GameVersion         = 1
)

const (
	encodingShift = 6
	typeMask      = 0x3F
)

var (
	// ErrDecode is returned when a fixed-width text field does not hold valid UTF-8.
	ErrDecode = errors.New("packet field is not valid UTF-8")
	// ErrShortRead is returned when a header read returned fewer than HeaderSize bytes.
	ErrShortRead = errors.New("short read")
)

// Type identifies the kind of packet carried after the header.
type Type uint8

// Packet type codes. Codes without a definition decode to TypeUnknown.
const (
	TypeUnknown      Type = 0
	AuthRequestType  Type = 1
	AuthResponseType Type = 2
	PingType         Type = 3
	DisconnectType   Type = 4
)

func (t Type) String() string {
	switch t {
	case AuthRequestType:
		return "AuthRequest"
	case AuthResponseType:
		return "AuthResponse"
	case PingType:
		return "Ping"
	case DisconnectType:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// Header is the decoded form of the two byte packet prefix. Encoding and Code keep
// the raw bits so that a header with an unrecognized encoding or type code can be
// re-encoded without loss.
type Header struct {
	Version  uint8
	Encoding uint8
	Code     uint8
}

// Type maps the raw type code to one of the known packet types.
func (h Header) Type() Type {
	switch t := Type(h.Code); t {
	case AuthRequestType, AuthResponseType, PingType, DisconnectType:
		return t
	default:
		return TypeUnknown
	}
}

// Bytes encodes the header back into its wire form.
func (h Header) Bytes() [HeaderSize]byte {
	return [HeaderSize]byte{h.Version, h.Encoding<<encodingShift | h.Code&typeMask}
}

// DecodeHeader splits the header into its version, encoding and type code. It
// never fails; unknown type codes are reported through Header.Type.
func DecodeHeader(b [HeaderSize]byte) Header {
	return Header{
		Version:  b[0],
		Encoding: b[1] >> encodingShift,
		Code:     b[1] & typeMask,
	}
}

func newHeader(version uint8, t Type) Header {
	return Header{Version: version, Code: uint8(t) & typeMask}
}

// EncodeEmpty returns a header-only packet, used for Ping and Disconnect.
func EncodeEmpty(t Type) [HeaderSize]byte {
	return newHeader(GameVersion, t).Bytes()
}

// PayloadSize returns the fixed number of payload bytes following a header of type t.
func PayloadSize(t Type) int {
	switch t {
	case AuthRequestType:
		return AuthRequestSize
	case AuthResponseType:
		return AuthResponseSize
	default:
		return 0
	}
}
