package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type DispatcherSuite struct {
	test.Suite
	d      *Dispatcher
	cancel func()
}

func (s *DispatcherSuite) SetupTest() {
	s.Suite.SetupTest()

	fake := clock.NewFake(time.Unix(0, 0))
	dir := s.T().TempDir()

	storeEngine := store.New(fake, 32)
	queueEngine := queue.New(fake, 32, dir)
	streamEngine := stream.New(fake, 32, dir)
	pubsubEngine, err := pubsub.New(fake, 32, dir, persist.Memory)
	s.Require().NoError(err)

	runCtx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel

	go storeEngine.Run(runCtx)
	go queueEngine.Run(runCtx)
	go streamEngine.Run(runCtx)
	go pubsubEngine.Run(runCtx)

	s.d = &Dispatcher{Store: storeEngine, Queue: queueEngine, Stream: streamEngine, PubSub: pubsubEngine}
}

func (s *DispatcherSuite) TearDownTest() {
	s.cancel()
}

func queueCreatePayload(name string) []byte {
	enc := wire.NewEncoder()
	enc.PutString(name)
	enc.PutU64(1000).PutU32(3).PutU64(0).PutU8(0).PutU64(0)
	return enc.Bytes()
}

func (s *DispatcherSuite) TestQueueCreateRejectsPathTraversalName() {
	frame := &wire.Frame{
		Engine:  wire.EngineQueue,
		Command: protocol.QueueCreate,
		Kind:    wire.KindRequest,
		Payload: queueCreatePayload("../../etc/jobs"),
	}
	resp := s.d.Dispatch(s.Ctx, frame, nil)
	s.Require().Equal(wire.StatusErr, wire.Status(resp.Payload[0]))

	dec := wire.NewDecoder(resp.Payload[1:])
	code, err := dec.String()
	s.Require().NoError(err)
	s.Assert().Equal(errors.CodeInvalidArgument, code)
}

func (s *DispatcherSuite) TestQueueCreateAcceptsValidName() {
	frame := &wire.Frame{
		Engine:  wire.EngineQueue,
		Command: protocol.QueueCreate,
		Kind:    wire.KindRequest,
		Payload: queueCreatePayload("jobs"),
	}
	resp := s.d.Dispatch(s.Ctx, frame, nil)
	s.Require().Equal(wire.StatusOK, wire.Status(resp.Payload[0]))
}

func (s *DispatcherSuite) TestStreamCreateRejectsPathTraversalName() {
	enc := wire.NewEncoder()
	enc.PutString("../secrets").PutU16(1).PutU8(0)
	frame := &wire.Frame{
		Engine:  wire.EngineStream,
		Command: protocol.StreamCreate,
		Kind:    wire.KindRequest,
		Payload: enc.Bytes(),
	}
	resp := s.d.Dispatch(s.Ctx, frame, nil)
	s.Require().Equal(wire.StatusErr, wire.Status(resp.Payload[0]))
}

func TestDispatcherSuite(t *testing.T) {
	test.Run(t, new(DispatcherSuite))
}
