package packets

import (
	"fmt"
	"io"
)

// ReadHeader performs a single read of up to HeaderSize bytes from r. A read that
// returns some but not all of the header yields ErrShortRead; those bytes are
// discarded and the caller is expected to drop the packet and keep reading.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	n, err := r.Read(buf[:])
	if n == HeaderSize {
		return DecodeHeader(buf), nil
	}
	if err != nil {
		return Header{}, err
	}
	if n == 0 {
		return Header{}, io.ErrNoProgress
	}
	return Header{}, fmt.Errorf("%w: got %d of %d header bytes", ErrShortRead, n, HeaderSize)
}

// ReadAuthRequest reads and decodes the fixed-size payload of an AuthRequest.
func ReadAuthRequest(r io.Reader) (AuthRequest, error) {
	var buf [AuthRequestSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return AuthRequest{}, err
	}
	return DecodeAuthRequest(buf)
}

// ReadAuthResponse reads and decodes the fixed-size payload of an AuthResponse.
func ReadAuthResponse(r io.Reader) (AuthResponse, error) {
	var buf [AuthResponseSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return AuthResponse{}, err
	}
	return DecodeAuthResponse(buf), nil
}
