package internal

import (
	"context"

	"github.com/dcrodman/tether/internal/core/client"
	"github.com/dcrodman/tether/internal/packets"
)

// Backend is an interface for the component that gives meaning to the packets
// read from each client.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// Handle is the main entry point for processing client packets. It receives the
	// decoded header and reads any payload that follows from the client. A non-nil
	// error closes the connection.
	Handle(ctx context.Context, c *client.Client, header packets.Header) error

	// Disconnected is called once the client's connection has been closed and the
	// client removed from the registry.
	Disconnected(c *client.Client)
}
