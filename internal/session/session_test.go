package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newPipe(t *testing.T) net.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a
}

func TestSession_Lifecycle(t *testing.T) {
	s := New()
	if got := s.State(); got != Connecting {
		t.Fatalf("expected new session to be %v, got %v", Connecting, got)
	}

	gen, err := s.Attach(newPipe(t))
	if err != nil {
		t.Fatalf("Attach() returned an unexpected error: %v", err)
	}
	if got := s.State(); got != AwaitingAuth {
		t.Errorf("expected %v after Attach, got %v", AwaitingAuth, got)
	}

	if !s.MarkAuthenticated(gen, "abc") {
		t.Fatal("MarkAuthenticated() rejected the current generation")
	}
	if got := s.State(); got != Active {
		t.Errorf("expected %v after authentication, got %v", Active, got)
	}
	if s.Token() != "abc" {
		t.Errorf("expected token abc, got %q", s.Token())
	}

	if !s.MarkDisconnected(gen) {
		t.Fatal("MarkDisconnected() did not report the transition")
	}
	st := s.Status()
	if diff := cmp.Diff(Status{Retrying: true, Gen: gen, State: Degraded}, st); diff != "" {
		t.Errorf("unexpected status after disconnect (-want +got):\n%s", diff)
	}

	gen2, err := s.Attach(newPipe(t))
	if err != nil {
		t.Fatalf("Attach() returned an unexpected error: %v", err)
	}
	if gen2 == gen {
		t.Errorf("expected a new generation on reconnect")
	}
	if st := s.Status(); !st.Connected || st.Retrying || st.Authenticated {
		t.Errorf("unexpected flags after reconnect: %+v", st)
	}

	s.Terminate()
	if got := s.State(); got != Terminated {
		t.Errorf("expected %v, got %v", Terminated, got)
	}
	if _, err := s.Attach(newPipe(t)); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated attaching to a terminated session, got %v", err)
	}
}

func TestSession_MarkDisconnectedIsIdempotent(t *testing.T) {
	s := New()
	conn := newPipe(t)
	gen, _ := s.Attach(conn)

	if !s.MarkDisconnected(gen) {
		t.Fatal("first MarkDisconnected() should report the transition")
	}
	if s.MarkDisconnected(gen) {
		t.Error("second MarkDisconnected() should be a no-op")
	}

	if _, err := conn.Write([]byte{1}); err == nil {
		t.Error("expected the lost connection to be closed")
	}
}

func TestSession_StaleGenerationIgnored(t *testing.T) {
	s := New()
	old, _ := s.Attach(newPipe(t))
	s.MarkDisconnected(old)
	current, _ := s.Attach(newPipe(t))

	if s.MarkDisconnected(old) {
		t.Error("MarkDisconnected() with a stale generation should be ignored")
	}
	if s.MarkAuthenticated(old, "stale") {
		t.Error("MarkAuthenticated() with a stale generation should be ignored")
	}
	if st := s.Status(); !st.Connected || st.Gen != current {
		t.Errorf("current connection should be unaffected, got %+v", st)
	}
}

func TestSession_OutboundQueueIsFIFO(t *testing.T) {
	s := New()
	s.Enqueue([]byte{1})
	s.Enqueue([]byte{2})
	s.Enqueue([]byte{3})

	if got := s.Status().Pending; got != 3 {
		t.Errorf("expected 3 pending messages, got %d", got)
	}
	want := [][]byte{{1}, {2}, {3}}
	if diff := cmp.Diff(want, s.Drain()); diff != "" {
		t.Errorf("Drain() mismatch (-want +got):\n%s", diff)
	}
	if got := s.Drain(); len(got) != 0 {
		t.Errorf("expected an empty queue after Drain, got %v", got)
	}
}

func TestSession_Ping(t *testing.T) {
	s := New()
	s.Attach(newPipe(t))
	t0 := time.Unix(100, 0)

	if _, ok := s.CompletePing(t0); ok {
		t.Error("CompletePing() without an outstanding ping should fail")
	}
	if !s.StartPing(t0) {
		t.Fatal("StartPing() should allocate a record when the slot is empty")
	}
	if s.StartPing(t0.Add(time.Second)) {
		t.Error("StartPing() must not replace an uncompleted ping")
	}

	latency, ok := s.CompletePing(t0.Add(25 * time.Millisecond))
	if !ok || latency != 25*time.Millisecond {
		t.Errorf("CompletePing() = %v, %v; want 25ms, true", latency, ok)
	}
	if _, ok := s.CompletePing(t0.Add(time.Second)); ok {
		t.Error("a ping can only be completed once")
	}

	if !s.StartPing(t0.Add(2 * time.Second)) {
		t.Error("StartPing() should allocate a new record after the previous completed")
	}
	p, ok := s.LastPing()
	if !ok || p.Completed() || !p.SentAt.Equal(t0.Add(2*time.Second)) {
		t.Errorf("unexpected ping record: %+v", p)
	}
}

func TestSession_AttachResetsPing(t *testing.T) {
	s := New()
	gen, _ := s.Attach(newPipe(t))
	s.StartPing(time.Now())
	s.MarkDisconnected(gen)
	s.Attach(newPipe(t))

	if _, ok := s.LastPing(); ok {
		t.Error("expected the ping slot to be cleared for a new connection")
	}
	if !s.StartPing(time.Now()) {
		t.Error("expected StartPing() to succeed on a new connection")
	}
}

func TestSession_Wait(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan Status, 1)
	go func() {
		st, err := s.Wait(ctx, HasOutbound)
		if err != nil {
			t.Errorf("Wait() returned an unexpected error: %v", err)
		}
		done <- st
	}()

	gen, _ := s.Attach(newPipe(t))
	s.Enqueue([]byte{1})
	s.MarkAuthenticated(gen, "abc")

	select {
	case st := <-done:
		if st.State != Active || st.Pending != 1 {
			t.Errorf("unexpected status from Wait: %+v", st)
		}
	case <-ctx.Done():
		t.Fatal("Wait() did not return once the session became active")
	}
}

func TestSession_WaitTerminated(t *testing.T) {
	s := New()
	errs := make(chan error, 1)
	go func() {
		_, err := s.Wait(context.Background(), IsActive)
		errs <- err
	}()

	s.Terminate()
	select {
	case err := <-errs:
		if !errors.Is(err, ErrTerminated) {
			t.Errorf("expected ErrTerminated, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait() did not return after Terminate")
	}
}

func TestSession_WaitContextCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Wait(ctx, IsActive); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
