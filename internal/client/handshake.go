package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/packets"
)

// authenticate performs the handshake on a freshly attached connection. A rejected
// handshake is retried after client.auth_retry_delay for as long as the connection
// lives. Any returned error means the connection is unusable.
func (c *Client) authenticate(ctx context.Context, conn net.Conn, gen uint64) error {
	ctx, span := tracer.Start(ctx, "client.Handshake", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// Unblock reads when the client is shutting down.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	req := packets.EncodeAuthRequest(c.Config.Client.Username, c.Config.Client.Password)
	for attempt := 1; ; attempt++ {
		span.SetAttributes(attribute.Int("handshake.attempts", attempt))

		if _, err := conn.Write(req[:]); err != nil {
			span.RecordError(err)
			return fmt.Errorf("error sending auth request: %w", err)
		}
		c.logPacket(debug.Outbound, req[:])

		resp, err := c.awaitAuthResponse(conn)
		if err != nil {
			span.RecordError(err)
			return err
		}

		if resp.OK {
			if !c.session.MarkAuthenticated(gen, resp.Token) {
				return errors.New("connection replaced during handshake")
			}
			c.Logger.Infof("authenticated as %q", c.Config.Client.Username)
			return nil
		}

		c.Logger.Warnf("authentication rejected, retrying in %v", c.Config.Client.AuthRetryDelay)
		if !sleep(ctx, c.Config.Client.AuthRetryDelay) {
			return ctx.Err()
		}
	}
}

// awaitAuthResponse reads from conn until an AuthResponse with the expected version
// arrives, discarding anything else. It is bounded by client.auth_timeout.
func (c *Client) awaitAuthResponse(conn net.Conn) (packets.AuthResponse, error) {
	if timeout := c.Config.Client.AuthTimeout; timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return packets.AuthResponse{}, err
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	for {
		header, err := packets.ReadHeader(conn)
		switch {
		case errors.Is(err, packets.ErrShortRead), errors.Is(err, io.ErrNoProgress):
			c.Logger.Debugf("ignoring partial header during handshake: %v", err)
			continue
		case err != nil:
			return packets.AuthResponse{}, fmt.Errorf("error reading auth response: %w", err)
		}

		raw := header.Bytes()
		c.logPacket(debug.Inbound, raw[:])

		if header.Type() == packets.AuthResponseType && header.Version == packets.AuthResponseVersion {
			return packets.ReadAuthResponse(conn)
		}

		c.Logger.Debugf("skipping %v packet while waiting for auth response", header.Type())
		if err := discardPayload(conn, header); err != nil {
			return packets.AuthResponse{}, err
		}
	}
}

// discardPayload consumes the fixed payload that follows header, if it has one.
func discardPayload(r io.Reader, header packets.Header) error {
	n := packets.PayloadSize(header.Type())
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
		return fmt.Errorf("error discarding %v payload: %w", header.Type(), err)
	}
	return nil
}
