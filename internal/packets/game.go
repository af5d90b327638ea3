package packets

import "encoding/binary"

// GamePayloadSize is the size of the content value carried by game packets.
const GamePayloadSize = 2

// Game data packet layout:
//
//	┌---------------┬---------------┬---------------┬---------------┐
//	|1 2 3 4 5 6 7 8|1 2 3 4 5 6 7 8|1 2 3 4 5 6 7 8|1 2 3 4 5 6 7 8|
//	├---------------┼---┬-----------┼---------------┴---------------┤
//	|   version     |en | data_type | content (big endian)          |
//	└---------------┴---┴-----------┴-------------------------------┘

// EncodeGame builds a game data packet of type t carrying content.
func EncodeGame(t Type, content uint16) [HeaderSize + GamePayloadSize]byte {
	var pkt [HeaderSize + GamePayloadSize]byte
	hdr := newHeader(GameVersion, t).Bytes()
	copy(pkt[:HeaderSize], hdr[:])
	binary.BigEndian.PutUint16(pkt[HeaderSize:], content)
	return pkt
}

// DecodeGame splits a game data packet into its header and content value.
func DecodeGame(b [HeaderSize + GamePayloadSize]byte) (Header, uint16) {
	return DecodeHeader([HeaderSize]byte{b[0], b[1]}), binary.BigEndian.Uint16(b[HeaderSize:])
}
