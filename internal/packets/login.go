package packets

import (
	"unicode/utf8"

	"github.com/dcrodman/tether/internal/core/bytes"
)

// Fixed field widths of the authentication packets.
const (
	UsernameLength   = 20
	PasswordLength   = 32
	AuthRequestSize  = UsernameLength + PasswordLength
	AuthResponseSize = 32
)

// AuthFailureToken is the token value the server sends when authentication fails.
const AuthFailureToken = "0"

// AuthRequest is the decoded payload of the packet a client sends right after connecting.
type AuthRequest struct {
	Username string
	Password string
}

// AuthResponse is the decoded payload of the server's reply to an AuthRequest. OK is
// false when the server sent the failure sentinel (or an undecodable token), which
// spares callers from comparing against AuthFailureToken themselves.
type AuthResponse struct {
	Token string
	OK    bool
}

// EncodeAuthRequest builds a complete AuthRequest packet. Each credential is
// left-padded with zeros to its field width, or truncated if it is longer.
func EncodeAuthRequest(username, password string) [HeaderSize + AuthRequestSize]byte {
	var pkt [HeaderSize + AuthRequestSize]byte
	hdr := newHeader(AuthRequestVersion, AuthRequestType).Bytes()
	copy(pkt[:HeaderSize], hdr[:])
	copy(pkt[HeaderSize:], bytes.PadLeft([]byte(username), UsernameLength))
	copy(pkt[HeaderSize+UsernameLength:], bytes.PadLeft([]byte(password), PasswordLength))
	return pkt
}

// DecodeAuthRequest splits the payload at the fixed username/password boundary and
// strips the leading padding of each field. Returns ErrDecode if either field is not
// valid UTF-8.
func DecodeAuthRequest(b [AuthRequestSize]byte) (AuthRequest, error) {
	username := bytes.StripLeadingPadding(b[:UsernameLength])
	password := bytes.StripLeadingPadding(b[UsernameLength:])

	if !utf8.Valid(username) || !utf8.Valid(password) {
		return AuthRequest{}, ErrDecode
	}
	return AuthRequest{Username: string(username), Password: string(password)}, nil
}

// EncodeAuthResponse builds a complete AuthResponse packet carrying token, which
// follows the same padding and truncation rules as the AuthRequest fields.
func EncodeAuthResponse(token string) [HeaderSize + AuthResponseSize]byte {
	var pkt [HeaderSize + AuthResponseSize]byte
	hdr := newHeader(AuthResponseVersion, AuthResponseType).Bytes()
	copy(pkt[:HeaderSize], hdr[:])
	copy(pkt[HeaderSize:], bytes.PadLeft([]byte(token), AuthResponseSize))
	return pkt
}

// DecodeAuthResponse extracts the token from an AuthResponse payload. A token that
// is not valid UTF-8 is reported as a failure.
func DecodeAuthResponse(b [AuthResponseSize]byte) AuthResponse {
	token := bytes.StripLeadingPadding(b[:])
	if !utf8.Valid(token) {
		return AuthResponse{Token: AuthFailureToken}
	}

	resp := AuthResponse{Token: string(token)}
	resp.OK = resp.Token != AuthFailureToken
	return resp
}
