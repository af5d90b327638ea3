package client

import (
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/tether/internal/packets"
)

var testPacketBytes = func() []byte {
	pkt := packets.EncodeAuthResponse("0123456789abcdef0123456789abcdef")
	return pkt[:]
}()

func newTestListener(t *testing.T) (*net.TCPListener, *net.TCPAddr) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("error initializing test listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener, listener.Addr().(*net.TCPAddr)
}

func newTestConnection(t *testing.T, addr *net.TCPAddr) *net.TCPConn {
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("error initializing test connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestClient returns a server side Client and the peer connection it talks to.
func newTestClient(t *testing.T) (*Client, *net.TCPConn) {
	serverListener, addr := newTestListener(t)
	conn := newTestConnection(t, addr)

	clientConn, err := serverListener.AcceptTCP()
	if err != nil {
		t.Fatalf("error initializing client connection: %s", err)
	}
	c := NewClient(clientConn)
	t.Cleanup(func() { c.Close() })
	return c, conn
}

func TestNewClient(t *testing.T) {
	c1, conn := newTestClient(t)
	c2, _ := newTestClient(t)

	if c1.ID() == c2.ID() {
		t.Errorf("expected unique client IDs, both were %d", c1.ID())
	}
	if c1.IPAddr() != "127.0.0.1" {
		t.Errorf("expected IP address 127.0.0.1, got %s", c1.IPAddr())
	}
	if _, port, _ := net.SplitHostPort(conn.LocalAddr().String()); c1.Port() != port {
		t.Errorf("expected port %s, got %s", port, c1.Port())
	}
	if !c1.Connected() || c1.Authenticated() {
		t.Errorf("expected a new client to be connected and unauthenticated")
	}
}

func TestClient_Read(t *testing.T) {
	client, conn := newTestClient(t)

	if _, err := conn.Write(testPacketBytes); err != nil {
		t.Fatalf("error writing to test connection: %s", err)
	}

	buf := make([]byte, len(testPacketBytes))
	bytesRead, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read() returned an unexpected error: %s", err)
	} else if bytesRead != len(testPacketBytes) {
		t.Fatalf("expected to have read %d bytes, got %d", len(testPacketBytes), bytesRead)
	}

	if diff := cmp.Diff(testPacketBytes, buf); diff != "" {
		t.Fatalf("Read() result did not match expected; diff:\n%s", diff)
	}
}

func TestClient_Send(t *testing.T) {
	client, conn := newTestClient(t)

	if err := client.Send(testPacketBytes, time.Second); err != nil {
		t.Fatalf("Send() returned an unexpected error: %s", err)
	}
	client.Close()

	buf := make([]byte, len(testPacketBytes))
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("error reading from test connection: %s", err)
	}

	if diff := cmp.Diff(testPacketBytes, buf); diff != "" {
		t.Fatalf("bytes read from test connection did not match expected; diff:\n%s", diff)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	client, _ := newTestClient(t)
	client.Close()

	if err := client.Send(testPacketBytes, time.Second); err == nil {
		t.Error("expected Send() on a closed client to fail")
	}
	if err := client.Close(); err != nil {
		t.Errorf("closing a client twice should be a no-op, got %v", err)
	}
}

func TestClient_Authenticate(t *testing.T) {
	client, _ := newTestClient(t)
	client.Authenticate("alice", "abc")

	if !client.Authenticated() || client.Username() != "alice" || client.Token() != "abc" {
		t.Errorf("unexpected client state after Authenticate: %v %s %s",
			client.Authenticated(), client.Username(), client.Token())
	}

	client.Close()
	if client.Authenticated() {
		t.Error("expected a closed client to no longer be authenticated")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c1, conn := newTestClient(t)
	c2, _ := newTestClient(t)

	r.Add(c1)
	r.Add(c2)
	if r.Len() != 2 {
		t.Fatalf("expected 2 registered clients, got %d", r.Len())
	}
	if got, ok := r.Lookup(c1.ID()); !ok || got != c1 {
		t.Errorf("Lookup() did not return the registered client")
	}

	r.Remove(c1)
	if _, ok := r.Lookup(c1.ID()); ok {
		t.Error("expected removed client to be gone")
	}

	r.Add(c1)
	r.CloseAll()
	if c1.Connected() || c2.Connected() {
		t.Error("expected CloseAll() to close every client")
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("expected the peer to observe the closed connection")
	}
}
