package client

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/packets"
	"github.com/dcrodman/tether/internal/session"
)

// readLoop processes packets from the server while the session is active.
func (c *Client) readLoop(ctx context.Context) {
	for {
		st, err := c.session.Wait(ctx, session.IsActive)
		if err != nil {
			return
		}
		conn := st.Conn

		if timeout := c.Config.Client.ReceiveTimeout; timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}

		header, err := packets.ReadHeader(conn)
		if err != nil {
			switch {
			case errors.Is(err, packets.ErrShortRead):
				c.Logger.Warnf("dropping packet: %v", err)
			case core.IsConnectionLost(err):
				c.connectionLost(st.Gen, err)
			default:
				c.Logger.Debugf("ignoring transient read error: %v", err)
			}
			continue
		}

		raw := header.Bytes()
		c.logPacket(debug.Inbound, raw[:])

		switch header.Type() {
		case packets.PingType:
			if latency, ok := c.session.CompletePing(time.Now()); ok {
				c.Metrics.PingLatency.Observe(latency.Seconds())
				c.Logger.Infof("ping latency: %v", latency)
			} else {
				c.Logger.Debug("received ping with no ping outstanding")
			}
		case packets.DisconnectType:
			c.Logger.Info("server sent disconnect")
		case packets.AuthResponseType:
			// Only meaningful during the handshake.
			if _, err := packets.ReadAuthResponse(conn); err != nil && core.IsConnectionLost(err) {
				c.connectionLost(st.Gen, err)
			}
		default:
			c.Logger.Warnf("received unknown packet type %d (version %d)", header.Code, header.Version)
			if err := discardPayload(conn, header); err != nil && core.IsConnectionLost(err) {
				c.connectionLost(st.Gen, err)
			}
		}
	}
}

// writeLoop sends queued messages in order whenever the session is active. If a
// write fails the connection is considered lost and the rest of the batch is dropped.
func (c *Client) writeLoop(ctx context.Context) {
	for {
		st, err := c.session.Wait(ctx, session.HasOutbound)
		if err != nil {
			return
		}

		msgs := c.session.Drain()
		w := bufio.NewWriter(st.Conn)
		for i, msg := range msgs {
			_, err := w.Write(msg)
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				c.Logger.Debugf("dropping %d queued messages", len(msgs)-i)
				c.connectionLost(st.Gen, err)
				break
			}
			c.logPacket(debug.Outbound, msg)
		}
	}
}

// heartbeatLoop queues a Ping every client.heartbeat_interval while the session
// is active and records it if no earlier ping is still outstanding.
func (c *Client) heartbeatLoop(ctx context.Context) {
	interval := c.Config.Client.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			switch c.session.State() {
			case session.Terminated:
				return
			case session.Active:
				c.session.StartPing(now)
				ping := packets.EncodeEmpty(packets.PingType)
				c.session.Enqueue(ping[:])
			}
		}
	}
}
