package stream

import (
	"context"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/streaming/adapters/memory"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type BridgeSuite struct {
	test.Suite
	engine *Engine
	sink   *memory.Client
	cancel context.CancelFunc
}

func (s *BridgeSuite) SetupTest() {
	s.Suite.SetupTest()
	fake := clock.NewFake(time.Unix(0, 0))
	s.sink = memory.New()
	s.engine = New(fake, 32, s.T().TempDir(), WithSink(s.sink))

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go s.engine.Run(ctx)
}

func (s *BridgeSuite) TearDownTest() {
	s.cancel()
}

func (s *BridgeSuite) TestPublishMirroredToExternalSink() {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &CreateCmd{
		Topic: "events", Partitions: 1, Persistence: persist.Memory, Reply: reply,
	}))
	s.Require().NoError(<-reply)

	pubReply := make(chan PublishResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &PublishCmd{Topic: "events", Payload: []byte("hello"), Reply: pubReply}))
	res := <-pubReply
	s.Require().NoError(res.Err)

	s.Require().Eventually(func() bool {
		return len(s.sink.GetRecords()) == 1
	}, time.Second, 10*time.Millisecond)

	records := s.sink.GetRecords()
	s.Assert().Equal("events", records[0].StreamName)
	s.Assert().Equal([]byte("hello"), records[0].Data)
}

func TestBridgeSuite(t *testing.T) {
	test.Run(t, new(BridgeSuite))
}
