package core

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// IsConnectionLost reports whether err means the peer is gone and the connection
// cannot be used again. Any other I/O error is treated as transient by callers.
func IsConnectionLost(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	default:
		return false
	}
}
