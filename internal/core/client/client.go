package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var idCounter atomic.Uint64

// Client represents a connection accepted by the server.
type Client struct {
	id         uint64
	connection net.Conn
	ipAddr     string
	port       string

	mu            sync.Mutex
	connected     bool
	authenticated bool
	username      string
	token         string

	// Log the contents of every packet sent to and received from this client.
	Debug bool
}

func NewClient(connection net.Conn) *Client {
	host, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		host = connection.RemoteAddr().String()
	}

	return &Client{
		id:         idCounter.Add(1),
		connection: connection,
		ipAddr:     host,
		port:       port,
		connected:  true,
	}
}

func (c *Client) ID() uint64     { return c.id }
func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

func (c *Client) String() string {
	return fmt.Sprintf("%d (%s)", c.id, net.JoinHostPort(c.ipAddr, c.port))
}

// Read consumes the available bytes directly the client's TCP connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.connection.Read(b)
}

// Write directly sends data to the client over its TCP connection.
func (c *Client) Write(b []byte) (int, error) {
	return c.connection.Write(b)
}

// Send writes data to the client, giving up if the write takes longer than timeout.
// A zero timeout waits indefinitely.
func (c *Client) Send(data []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := c.connection.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline for client %v: %w", c.id, err)
		}
		defer c.connection.SetWriteDeadline(time.Time{})
	}

	if _, err := c.connection.Write(data); err != nil {
		return fmt.Errorf("failed to send to client %v: %w", c.id, err)
	}
	return nil
}

// Close the TCP connection. Closing an already closed client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.authenticated = false
	c.mu.Unlock()

	return c.connection.Close()
}

// Connected is false once the connection has been closed.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Authenticate marks the client as having completed the handshake as username.
func (c *Client) Authenticate(username, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.username = username
	c.token = token
}

func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Token returns the session token issued to the client, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}
