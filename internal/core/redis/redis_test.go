package redis

import (
	"net"
	"os"
	"testing"
)

func TestNewClient_Unreachable(t *testing.T) {
	// Reserve a port and release it so that nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error reserving a port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if _, err := NewClient(addr); err == nil {
		t.Error("expected an error connecting to an unreachable redis")
	}
}

func TestClient(t *testing.T) {
	addr := os.Getenv("TETHER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TETHER_TEST_REDIS_ADDR not set")
	}

	c, err := NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient() returned an unexpected error: %v", err)
	}
	defer c.Close()

	if _, err := c.Do("SET", "tether:test", "value"); err != nil {
		t.Fatalf("SET returned an unexpected error: %v", err)
	}
	defer c.Do("DEL", "tether:test")

	got, err := String(c.Do("GET", "tether:test"))
	if err != nil || got != "value" {
		t.Errorf("GET = %q, %v; want value, nil", got, err)
	}
	if _, err := String(c.Do("GET", "tether:missing")); err != ErrNil {
		t.Errorf("expected ErrNil for a missing key, got %v", err)
	}
}
