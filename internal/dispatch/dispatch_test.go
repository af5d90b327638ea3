package dispatch

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/client"
	"github.com/dcrodman/tether/internal/packets"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Write(1, []byte{1})
	q.Write(2, []byte{2})
	q.Push(Event{Target: 1, Payload: []byte{3}})

	if q.Len() != 3 {
		t.Fatalf("expected 3 queued events, got %d", q.Len())
	}

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected the queue to signal readiness after a push")
	}

	want := []Event{
		{Target: 1, Payload: []byte{1}},
		{Target: 2, Payload: []byte{2}},
		{Target: 1, Payload: []byte{3}},
	}
	if diff := cmp.Diff(want, q.Drain()); diff != "" {
		t.Errorf("Drain() mismatch (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("expected an empty queue after Drain, got %d", q.Len())
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(target uint64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Write(target, nil)
			}
		}(uint64(i))
	}
	wg.Wait()

	if got := len(q.Drain()); got != 1000 {
		t.Errorf("expected 1000 events, got %d", got)
	}
}

// newTestPair registers a server side client and returns the peer it writes to.
func newTestPair(t *testing.T, registry *client.Registry) (*client.Client, net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error initializing test listener: %v", err)
	}
	defer listener.Close()

	peer, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("error initializing test connection: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	conn, err := listener.Accept()
	if err != nil {
		t.Fatalf("error accepting test connection: %v", err)
	}
	c := client.NewClient(conn)
	t.Cleanup(func() { c.Close() })
	registry.Add(c)
	return c, peer
}

func TestDispatcher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	metrics := core.NewMetrics(nil)
	registry := client.NewRegistry()
	queue := NewQueue()

	c, peer := newTestPair(t, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d := &Dispatcher{
		Queue:        queue,
		Clients:      registry,
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: time.Second,
	}
	go func() {
		d.Run(ctx)
		close(done)
	}()

	ping := packets.EncodeEmpty(packets.PingType)
	disconnect := packets.EncodeEmpty(packets.DisconnectType)
	queue.Write(c.ID(), ping[:])
	queue.Write(c.ID()+1000, ping[:])
	queue.Write(c.ID(), disconnect[:])

	peer.SetReadDeadline(time.Now().Add(5 * time.Second))
	got := make([]byte, 4)
	if _, err := io.ReadFull(peer, got); err != nil {
		t.Fatalf("error reading dispatched events: %v", err)
	}
	if diff := cmp.Diff(append(ping[:], disconnect[:]...), got); diff != "" {
		t.Errorf("dispatched bytes mismatch (-want +got):\n%s", diff)
	}

	cancel()
	<-done

	if n := testutil.ToFloat64(metrics.EventsDispatched); n != 2 {
		t.Errorf("expected 2 dispatched events, got %v", n)
	}
	if n := testutil.ToFloat64(metrics.EventsDropped); n != 1 {
		t.Errorf("expected 1 dropped event, got %v", n)
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("expected the dropped event to be logged")
	}
}

func TestDispatcher_ClosedClient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	metrics := core.NewMetrics(nil)
	registry := client.NewRegistry()
	queue := NewQueue()

	c, _ := newTestPair(t, registry)
	c.Close()

	d := &Dispatcher{Queue: queue, Clients: registry, Logger: logger, Metrics: metrics}
	queue.Write(c.ID(), []byte{1, 3})
	d.dispatchPending()

	if n := testutil.ToFloat64(metrics.EventsDropped); n != 1 {
		t.Errorf("expected the event for a closed client to be dropped, got %v", n)
	}
}
