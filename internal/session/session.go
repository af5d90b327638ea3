// Package session holds the client side view of a connection to the server: whether
// it is connected and authenticated, the issued token, the outbound queue and the
// in-flight ping. Every transition is broadcast so that the client's loops can
// block until the state they need instead of polling.
package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrTerminated is returned from Wait and Attach once the session has shut down.
var ErrTerminated = errors.New("session terminated")

// State is the lifecycle position of a Session, derived from its flags.
type State int

const (
	// Connecting means no connection has been established yet.
	Connecting State = iota
	// AwaitingAuth means a socket is attached but the handshake has not succeeded.
	AwaitingAuth
	// Active means the session is connected and authenticated.
	Active
	// Degraded means the connection was lost and a reconnect is pending.
	Degraded
	// Terminated means the session is neither connected nor retrying.
	Terminated
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingAuth:
		return "awaiting_auth"
	case Active:
		return "active"
	case Degraded:
		return "degraded"
	case Terminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// Ping records one heartbeat round trip. ReceivedAt is zero until the echo arrives.
type Ping struct {
	SentAt     time.Time
	ReceivedAt time.Time
}

// Completed reports whether the echo for this ping has been received.
func (p Ping) Completed() bool {
	return !p.ReceivedAt.IsZero()
}

// Latency is the round trip time of a completed ping.
func (p Ping) Latency() time.Duration {
	if !p.Completed() {
		return 0
	}
	return p.ReceivedAt.Sub(p.SentAt)
}

// Status is a snapshot of the session taken under its lock.
type Status struct {
	Connected     bool
	Authenticated bool
	Retrying      bool
	// Conn and Gen identify the attached connection. Gen increases on every Attach.
	Conn    net.Conn
	Gen     uint64
	Pending int
	State   State
}

// Session is safe for concurrent use. No lock is held across network I/O.
type Session struct {
	mu      sync.Mutex
	changed chan struct{}

	connected     bool
	authenticated bool
	retrying      bool
	everConnected bool

	token    string
	conn     net.Conn
	gen      uint64
	outbound [][]byte
	ping     *Ping
}

// New returns a session waiting for its first connection. A fresh session counts as
// retrying so that it is not mistaken for a terminated one.
func New() *Session {
	return &Session{
		changed:  make(chan struct{}),
		retrying: true,
	}
}

// notifyLocked wakes every goroutine blocked in Wait. Must hold s.mu.
func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) stateLocked() State {
	switch {
	case !s.connected && !s.retrying:
		return Terminated
	case !s.connected && s.everConnected:
		return Degraded
	case !s.connected:
		return Connecting
	case !s.authenticated:
		return AwaitingAuth
	default:
		return Active
	}
}

func (s *Session) statusLocked() Status {
	return Status{
		Connected:     s.connected,
		Authenticated: s.authenticated,
		Retrying:      s.retrying,
		Conn:          s.conn,
		Gen:           s.gen,
		Pending:       len(s.outbound),
		State:         s.stateLocked(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Token returns the token from the most recent successful handshake.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Attach installs a freshly dialed connection, clearing the authenticated flag and
// the ping slot. It returns the generation that identifies the connection.
func (s *Session) Attach(conn net.Conn) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() == Terminated {
		return 0, ErrTerminated
	}

	s.gen++
	s.conn = conn
	s.connected = true
	s.retrying = false
	s.authenticated = false
	s.everConnected = true
	s.ping = nil
	s.notifyLocked()
	return s.gen, nil
}

// MarkAuthenticated records a successful handshake on connection gen. It returns
// false if that connection is no longer the attached one.
func (s *Session) MarkAuthenticated(gen uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.connected {
		return false
	}
	s.authenticated = true
	s.token = token
	s.notifyLocked()
	return true
}

// MarkDisconnected flags connection gen as lost and closes it. Only the first call
// for the current connection has any effect; it returns true for that call alone so
// that callers log the loss exactly once.
func (s *Session) MarkDisconnected(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || !s.connected {
		s.mu.Unlock()
		return false
	}

	conn := s.conn
	s.conn = nil
	s.connected = false
	s.authenticated = false
	s.retrying = true
	s.notifyLocked()
	s.mu.Unlock()

	_ = conn.Close()
	return true
}

// Terminate shuts the session down for good and closes any attached connection.
func (s *Session) Terminate() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.authenticated = false
	s.retrying = false
	s.notifyLocked()
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Enqueue appends an encoded packet to the outbound queue.
func (s *Session) Enqueue(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound = append(s.outbound, msg)
	s.notifyLocked()
}

// Drain removes and returns everything in the outbound queue in FIFO order.
func (s *Session) Drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.outbound
	s.outbound = nil
	return msgs
}

// StartPing allocates a new ping record sent at now. It refuses while an earlier
// ping on the same connection is still waiting for its echo.
func (s *Session) StartPing(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ping != nil && !s.ping.Completed() {
		return false
	}
	s.ping = &Ping{SentAt: now}
	return true
}

// CompletePing marks the in-flight ping as received at now and returns its latency.
// ok is false if there was no outstanding ping.
func (s *Session) CompletePing(now time.Time) (latency time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ping == nil || s.ping.Completed() {
		return 0, false
	}
	s.ping.ReceivedAt = now
	return s.ping.Latency(), true
}

// LastPing returns a copy of the current ping record, if any.
func (s *Session) LastPing() (Ping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ping == nil {
		return Ping{}, false
	}
	return *s.ping, true
}

// Wait blocks until ready returns true for the session's status, the session is
// terminated, or ctx is done.
func (s *Session) Wait(ctx context.Context, ready func(Status) bool) (Status, error) {
	for {
		s.mu.Lock()
		st := s.statusLocked()
		changed := s.changed
		s.mu.Unlock()

		if st.State == Terminated {
			return st, ErrTerminated
		}
		if ready(st) {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

// IsActive is a Wait condition for a connected, authenticated session.
func IsActive(st Status) bool {
	return st.State == Active
}

// HasOutbound is a Wait condition for an active session with queued messages.
func HasOutbound(st Status) bool {
	return st.State == Active && st.Pending > 0
}
