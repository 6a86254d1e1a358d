// Package server implements the TCP connection layer: one goroutine
// per connection reading wire.Frames, routing them through a
// dispatcher.Dispatcher, and writing back responses and PubSub pushes.
// Connection loss is detected via a read deadline rather than an
// explicit close frame (spec.md §4.5's disconnect-detection
// tolerance), which also drives Stream group departure and PubSub
// subscription cleanup.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emanuel-epifani/nexo/internal/dispatcher"
	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/concurrency"
	"github.com/emanuel-epifani/nexo/pkg/events"
	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// ReadTimeout bounds how long a connection may sit idle before the
// broker treats it as gone. Spec.md §4.5 observes a test tolerating
// about 3s of disconnect-propagation latency for Stream consumer
// groups; this is that value, reused as the single heartbeat/read
// timeout for every engine's disconnect cleanup rather than a
// per-engine knob.
const ReadTimeout = 3 * time.Second

// pushBufferSize bounds a connection's outgoing PubSub buffer. A
// subscriber slower than this drops messages per the best-effort
// fan-out contract (spec.md §4.6), never blocks the publisher.
const pushBufferSize = 256

type Server struct {
	listener   net.Listener
	dispatcher *dispatcher.Dispatcher
	events     events.Bus
}

func New(listener net.Listener, d *dispatcher.Dispatcher, bus events.Bus) *Server {
	return &Server{listener: listener, dispatcher: d, events: bus}
}

// Serve accepts connections until ctx is canceled or the listener
// fails. It returns nil when ctx was canceled (the shutdown watcher
// closes the listener, interrupting Accept) and the Accept error
// otherwise.
func (s *Server) Serve(ctx context.Context) error {
	concurrency.SafeGo(ctx, func() {
		<-ctx.Done()
		s.listener.Close()
	})

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c := &connection{
			conn:       conn,
			dispatcher: s.dispatcher,
			events:     s.events,
			pushCh:     make(chan pubsub.Message, pushBufferSize),
		}
		concurrency.SafeGo(ctx, func() { c.run(ctx) })
	}
}

// connection owns one client socket end to end: the read loop, the
// push pump, and the bookkeeping needed to unwind Stream/PubSub
// membership when the socket goes away.
type connection struct {
	conn       net.Conn
	dispatcher *dispatcher.Dispatcher
	events     events.Bus
	pushCh     chan pubsub.Message

	writeMu sync.Mutex

	mu          sync.Mutex
	pubsubIDs   map[string]bool
	streamJoins map[streamMembership]bool
}

type streamMembership struct {
	topic, group, clientID string
}

func (c *connection) run(ctx context.Context) {
	defer c.conn.Close()
	defer c.cleanup(ctx)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pumpDone sync.WaitGroup
	pumpDone.Add(1)
	go func() {
		defer pumpDone.Done()
		c.pumpPushes(connCtx)
	}()
	defer pumpDone.Wait()
	defer cancel()

	for {
		c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))

		f, err := wire.ReadFrame(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.L().Debug("connection read failed", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}

		if f.Kind != wire.KindRequest {
			// a client sending anything but a request is a protocol
			// violation; close rather than try to interpret it.
			return
		}

		c.track(f)

		resp := c.dispatcher.Dispatch(connCtx, f, c.pushCh)
		if err := c.writeFrame(resp); err != nil {
			logger.L().Debug("connection write failed", "remote", c.conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (c *connection) pumpPushes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.pushCh:
			if !ok {
				return
			}
			enc := wire.NewEncoder()
			enc.PutString(msg.Topic).PutBytes(msg.Payload)
			frame := &wire.Frame{Engine: wire.EnginePubSub, Kind: wire.KindPush, Payload: enc.Bytes()}
			if err := c.writeFrame(frame); err != nil {
				return
			}
		}
	}
}

func (c *connection) writeFrame(f *wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.conn, f)
}

// track records enough of this request to unwind it on disconnect:
// PubSub client ids seen on a Subscribe, and Stream (topic, group,
// client) triples seen on a Join.
func (c *connection) track(f *wire.Frame) {
	dec := wire.NewDecoder(f.Payload)

	switch f.Engine {
	case wire.EnginePubSub:
		if f.Command != protocol.PubSubSubscribe {
			return
		}
		if _, err := dec.String(); err != nil { // pattern
			return
		}
		clientID, err := dec.String()
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.pubsubIDs == nil {
			c.pubsubIDs = make(map[string]bool)
		}
		c.pubsubIDs[clientID] = true
		c.mu.Unlock()

	case wire.EngineStream:
		if f.Command != protocol.StreamJoin {
			return
		}
		topic, err := dec.String()
		if err != nil {
			return
		}
		group, err := dec.String()
		if err != nil {
			return
		}
		clientID, err := dec.String()
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.streamJoins == nil {
			c.streamJoins = make(map[streamMembership]bool)
		}
		c.streamJoins[streamMembership{topic, group, clientID}] = true
		c.mu.Unlock()
	}
}

// cleanup unwinds every membership this connection accumulated. It
// runs on a fresh context.Background with its own 5s timeout rather
// than on ctx, so a shutdown-triggered ctx cancellation does not also
// cancel the cleanup it is supposed to perform.
func (c *connection) cleanup(ctx context.Context) {
	c.mu.Lock()
	pubsubIDs := c.pubsubIDs
	streamJoins := c.streamJoins
	c.mu.Unlock()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for clientID := range pubsubIDs {
		reply := make(chan struct{})
		if err := c.dispatcher.PubSub.Submit(cleanupCtx, &pubsub.DisconnectCmd{ClientID: clientID, Reply: reply}); err == nil {
			<-reply
		}
	}

	for m := range streamJoins {
		reply := make(chan error, 1)
		cmd := &stream.LeaveCmd{Topic: m.topic, Group: m.group, ClientID: m.clientID, Reply: reply}
		if err := c.dispatcher.Stream.Submit(cleanupCtx, cmd); err == nil {
			<-reply
		}
	}

	if c.events != nil {
		_ = c.events.Publish(cleanupCtx, "connection.closed", events.Event{
			Type:   "connection.closed",
			Source: "nexo.server",
			Payload: ConnectionClosed{
				PubSubSubscriptions: len(pubsubIDs),
				StreamMemberships:   len(streamJoins),
			},
		})
	}
}

// ConnectionClosed is the payload carried by a "connection.closed"
// event: how much cleanup the connection's departure actually
// triggered, so a subscriber can tell a routine disconnect from one
// that left behind a pile of live subscriptions.
type ConnectionClosed struct {
	PubSubSubscriptions int
	StreamMemberships   int
}
