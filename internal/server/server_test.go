package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/dispatcher"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type ServerSuite struct {
	test.Suite
	listener net.Listener
	cancel   context.CancelFunc
	addr     string

	pubsubEngine *pubsub.Engine
}

func (s *ServerSuite) SetupTest() {
	s.Suite.SetupTest()

	fake := clock.NewFake(time.Unix(0, 0))
	dir := s.T().TempDir()

	storeEngine := store.New(fake, 32)
	queueEngine := queue.New(fake, 32, dir)
	streamEngine := stream.New(fake, 32, dir)
	pubsubEngine, err := pubsub.New(fake, 32, dir, persist.Memory)
	s.Require().NoError(err)
	s.pubsubEngine = pubsubEngine

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.listener = ln
	s.addr = ln.Addr().String()

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel

	go storeEngine.Run(ctx)
	go queueEngine.Run(ctx)
	go streamEngine.Run(ctx)
	go pubsubEngine.Run(ctx)

	d := &dispatcher.Dispatcher{Store: storeEngine, Queue: queueEngine, Stream: streamEngine, PubSub: pubsubEngine}
	srv := New(ln, d, nil)
	go srv.Serve(ctx)
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
}

func (s *ServerSuite) dial() net.Conn {
	conn, err := net.DialTimeout("tcp", s.addr, time.Second)
	s.Require().NoError(err)
	return conn
}

func (s *ServerSuite) roundTrip(conn net.Conn, f *wire.Frame) *wire.Frame {
	s.Require().NoError(wire.WriteFrame(conn, f))
	resp, err := wire.ReadFrame(conn)
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) TestStoreSetGetRoundTrip() {
	conn := s.dial()
	defer conn.Close()

	enc := wire.NewEncoder()
	enc.PutString("k1").PutBytes([]byte("v1")).PutU64(0)
	setResp := s.roundTrip(conn, &wire.Frame{Engine: wire.EngineStore, Command: protocol.StoreSet, Kind: wire.KindRequest, Payload: enc.Bytes()})
	s.Assert().Equal(wire.Status(setResp.Payload[0]), wire.StatusOK)

	enc2 := wire.NewEncoder()
	enc2.PutString("k1")
	getResp := s.roundTrip(conn, &wire.Frame{Engine: wire.EngineStore, Command: protocol.StoreGet, Kind: wire.KindRequest, Payload: enc2.Bytes()})
	s.Require().Equal(wire.Status(getResp.Payload[0]), wire.StatusOK)

	dec := wire.NewDecoder(getResp.Payload[1:])
	found, err := dec.U8()
	s.Require().NoError(err)
	s.Assert().Equal(uint8(1), found)
	value, err := dec.Bytes()
	s.Require().NoError(err)
	s.Assert().Equal([]byte("v1"), value)
}

func (s *ServerSuite) TestPubSubPublishPushesToSubscriber() {
	conn := s.dial()
	defer conn.Close()

	sub := wire.NewEncoder()
	sub.PutString("weather/oslo").PutString("client-1")
	subResp := s.roundTrip(conn, &wire.Frame{Engine: wire.EnginePubSub, Command: protocol.PubSubSubscribe, Kind: wire.KindRequest, Payload: sub.Bytes()})
	s.Require().Equal(wire.Status(subResp.Payload[0]), wire.StatusOK)

	pubConn := s.dial()
	defer pubConn.Close()
	pub := wire.NewEncoder()
	pub.PutString("weather/oslo").PutBytes([]byte("rain")).PutU8(0)
	pubResp := s.roundTrip(pubConn, &wire.Frame{Engine: wire.EnginePubSub, Command: protocol.PubSubPublish, Kind: wire.KindRequest, Payload: pub.Bytes()})
	s.Require().Equal(wire.Status(pubResp.Payload[0]), wire.StatusOK)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	push, err := wire.ReadFrame(conn)
	s.Require().NoError(err)
	s.Assert().Equal(wire.KindPush, push.Kind)

	dec := wire.NewDecoder(push.Payload)
	topic, err := dec.String()
	s.Require().NoError(err)
	s.Assert().Equal("weather/oslo", topic)
	payload, err := dec.Bytes()
	s.Require().NoError(err)
	s.Assert().Equal([]byte("rain"), payload)
}

func (s *ServerSuite) TestDisconnectUnsubscribes() {
	conn := s.dial()

	sub := wire.NewEncoder()
	sub.PutString("alerts").PutString("client-2")
	subResp := s.roundTrip(conn, &wire.Frame{Engine: wire.EnginePubSub, Command: protocol.PubSubSubscribe, Kind: wire.KindRequest, Payload: sub.Bytes()})
	s.Require().Equal(wire.Status(subResp.Payload[0]), wire.StatusOK)

	conn.Close()
	time.Sleep(200 * time.Millisecond)

	pubConn := s.dial()
	defer pubConn.Close()
	pub := wire.NewEncoder()
	pub.PutString("alerts").PutBytes([]byte("x")).PutU8(0)
	resp := s.roundTrip(pubConn, &wire.Frame{Engine: wire.EnginePubSub, Command: protocol.PubSubPublish, Kind: wire.KindRequest, Payload: pub.Bytes()})
	s.Require().Equal(wire.Status(resp.Payload[0]), wire.StatusOK)

	snapReply := make(chan pubsub.Snapshot, 1)
	s.Require().NoError(s.pubsubEngine.Submit(s.Ctx, &pubsub.SnapshotCmd{Reply: snapReply}))
	s.Assert().Equal(0, (<-snapReply).ActiveClients)
}

func TestServerSuite(t *testing.T) {
	test.Run(t, new(ServerSuite))
}
