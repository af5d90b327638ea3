package dispatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/client"
	"github.com/dcrodman/tether/internal/core/debug"
)

// ClientLookup resolves an event target to a connected client.
type ClientLookup interface {
	Lookup(id uint64) (*client.Client, bool)
}

// Dispatcher is the only writer to client sockets on the server.
type Dispatcher struct {
	Queue        *Queue
	Clients      ClientLookup
	Logger       *logrus.Logger
	Metrics      *core.Metrics
	WriteTimeout time.Duration
}

// Run processes events until ctx is cancelled. Events still queued at that point
// are written before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.dispatchPending()
			return
		case <-d.Queue.Ready():
			d.dispatchPending()
		}
	}
}

func (d *Dispatcher) dispatchPending() {
	for _, e := range d.Queue.Drain() {
		d.dispatch(e)
	}
}

func (d *Dispatcher) dispatch(e Event) {
	c, ok := d.Clients.Lookup(e.Target)
	if !ok || !c.Connected() {
		d.Logger.WithField("client", e.Target).Info("dropping event for disconnected client")
		d.Metrics.EventsDropped.Inc()
		return
	}

	if c.Debug {
		debug.LogPacket(d.Logger.WithField("client", c.ID()), debug.Outbound, e.Payload)
	}

	if err := c.Send(e.Payload, d.WriteTimeout); err != nil {
		d.Logger.WithField("client", c.ID()).Warnf("error writing event: %v", err)
		d.Metrics.EventsDropped.Inc()
		return
	}
	d.Metrics.EventsDispatched.Inc()
}
