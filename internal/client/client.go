// Package client implements the connecting side of the protocol. A Client keeps a
// session with the server alive: it dials, authenticates, exchanges heartbeats and
// reconnects whenever the connection is lost, until its context is cancelled.
package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/packets"
	"github.com/dcrodman/tether/internal/session"
)

const (
	dialTimeout              = 5 * time.Second
	disconnectTimeout        = time.Second
	defaultHeartbeatInterval = time.Second
)

var tracer = otel.Tracer("github.com/dcrodman/tether/internal/client")

// Client drives one Session through its lifecycle.
type Client struct {
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *core.Metrics

	session *session.Session
}

func New(cfg *core.Config, logger *logrus.Logger, metrics *core.Metrics) *Client {
	return &Client{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		session: session.New(),
	}
}

// Session exposes the state of the connection to the server.
func (c *Client) Session() *session.Session {
	return c.session
}

// Run starts the reader, writer and heartbeat loops and then supervises the
// connection until ctx is cancelled. It returns once every loop has exited.
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.heartbeatLoop(ctx)
	}()

	c.supervise(ctx)
	c.shutdown()
	wg.Wait()

	c.Logger.Info("client stopped")
	return nil
}

// supervise dials the server whenever the session has no connection, retrying
// indefinitely, and authenticates each new connection.
func (c *Client) supervise(ctx context.Context) {
	addr := c.Config.ServerAddress()
	dialer := &net.Dialer{Timeout: dialTimeout}

	for ctx.Err() == nil {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Warnf("failed to connect to %s: %v", addr, err)
			if !sleep(ctx, c.Config.Client.ReconnectDelay) {
				return
			}
			continue
		}

		reconnect := c.session.State() == session.Degraded
		gen, err := c.session.Attach(conn)
		if err != nil {
			conn.Close()
			return
		}
		if reconnect {
			c.Logger.Infof("reconnected to %s", addr)
			c.Metrics.Reconnects.Inc()
		} else {
			c.Logger.Infof("connected to %s", addr)
		}

		if err := c.authenticate(ctx, conn, gen); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.connectionLost(gen, err)
			if !sleep(ctx, c.Config.Client.ReconnectDelay) {
				return
			}
			continue
		}

		// Block until this connection is lost.
		if _, err := c.session.Wait(ctx, func(st session.Status) bool {
			return st.Gen != gen || !st.Connected
		}); err != nil {
			return
		}
	}
}

// shutdown tells the server we are leaving and terminates the session, which
// closes the socket and releases every loop.
func (c *Client) shutdown() {
	if st := c.session.Status(); st.Connected {
		pkt := packets.EncodeEmpty(packets.DisconnectType)
		_ = st.Conn.SetWriteDeadline(time.Now().Add(disconnectTimeout))
		if _, err := st.Conn.Write(pkt[:]); err != nil {
			c.Logger.Debugf("failed to send disconnect: %v", err)
		} else {
			c.logPacket(debug.Outbound, pkt[:])
		}
	}
	c.session.Terminate()
}

// connectionLost flags connection gen as lost. Only the first report for a
// connection is logged.
func (c *Client) connectionLost(gen uint64, err error) {
	if c.session.MarkDisconnected(gen) {
		c.Logger.Warnf("connection lost: %v", err)
	}
}

func (c *Client) logPacket(dir debug.Direction, data []byte) {
	if c.Config.Debugging.PacketLoggingEnabled {
		debug.LogPacket(c.Logger, dir, data)
	}
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
