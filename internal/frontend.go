package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/client"
	tetherdebug "github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/packets"
)

// frontend implements the concurrent client connection logic.
//
// Data is read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Clients *client.Registry
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *core.Metrics

	socket net.Listener
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %w", f.Backend.Identifier(), err)
	}

	socket, err := net.Listen("tcp", f.Address)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", f.Address, err)
	}
	f.socket = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, wg)

	return nil
}

// Addr is the address the server is listening on once Start has returned.
func (f *frontend) Addr() net.Addr {
	return f.socket.Addr()
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Infof("[%s] waiting for connections on %v", f.Backend.Identifier(), f.socket.Addr())

	// Closing the socket is what unblocks Accept on shutdown.
	stop := context.AfterFunc(ctx, func() { f.socket.Close() })
	defer stop()

	clientWg := &sync.WaitGroup{}
	for {
		connection, err := f.socket.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			f.Logger.Warnf("failed to accept connection: %s", err.Error())
			continue
		}

		if reason := f.admit(connection); reason != "" {
			f.Metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
			_ = connection.Close()
			continue
		}

		c := client.NewClient(connection)
		c.Debug = f.Config.Debugging.PacketLoggingEnabled
		f.Clients.Add(c)
		f.Metrics.ConnectionsAccepted.Inc()
		f.Metrics.ActiveConnections.Inc()

		clientWg.Add(1)
		go f.acceptClient(ctx, c, clientWg)
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	f.Clients.CloseAll()
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// admit returns a non-empty reason if the connection must be refused.
func (f *frontend) admit(connection net.Conn) string {
	addr := connection.RemoteAddr()
	if !isLoopback(addr) {
		f.Logger.Warnf("[%s] rejected outside connection from %s", f.Backend.Identifier(), addr)
		return "non_loopback"
	}
	if limit := f.Config.MaxConnections; limit > 0 && f.Clients.Len() >= limit {
		f.Logger.Warnf("[%s] rejected connection from %s: server is full", f.Backend.Identifier(), addr)
		return "server_full"
	}
	return ""
}

func isLoopback(addr net.Addr) bool {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.IsLoopback()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// acceptClient runs the packet processing loop for a newly registered client.
func (f *frontend) acceptClient(ctx context.Context, c *client.Client, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Infof("[%s] accepted connection from %s (client %d)", f.Backend.Identifier(), c.IPAddr(), c.ID())
	f.processPackets(ctx, c)
}

// processPackets starts a blocking loop dedicated to reading data sent from
// a client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	logger := f.Logger.WithField("client", c.ID())
	for {
		header, err := packets.ReadHeader(c)
		if err != nil {
			switch {
			case errors.Is(err, packets.ErrShortRead):
				logger.Warnf("dropping packet: %v", err)
				continue
			case core.IsConnectionLost(err):
				logger.Infof("connection closed: %v", err)
				return
			default:
				logger.Debugf("ignoring transient read error: %v", err)
				continue
			}
		}

		if c.Debug {
			raw := header.Bytes()
			tetherdebug.LogPacket(logger, tetherdebug.Inbound, raw[:])
		}

		if err = f.Backend.Handle(ctx, c, header); err != nil {
			if !core.IsConnectionLost(err) {
				logger.Warn("error in client communication: " + err.Error())
			}
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the list regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.Clients.Remove(c)
	f.Metrics.ActiveConnections.Dec()
	f.Backend.Disconnected(c)

	f.Logger.Infof("[%s] disconnected client %d", serverName, c.ID())
}
