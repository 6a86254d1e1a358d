package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type EngineSuite struct {
	test.Suite
	engine *Engine
	fake   *clock.Fake
	cancel context.CancelFunc
}

func (s *EngineSuite) SetupTest() {
	s.Suite.SetupTest()
	s.fake = clock.NewFake(time.Unix(0, 0))
	engine, err := New(s.fake, 32, s.T().TempDir(), persist.Memory)
	s.Require().NoError(err)
	s.engine = engine

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go s.engine.Run(ctx)
}

func (s *EngineSuite) TearDownTest() {
	s.cancel()
}

func (s *EngineSuite) subscribe(pattern, clientID string, ch chan Message) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &SubscribeCmd{Pattern: pattern, ClientID: clientID, Ch: ch, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) publish(topic string, payload []byte, retain bool) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &PublishCmd{Topic: topic, Payload: payload, Retain: retain, Reply: reply}))
	return <-reply
}

func recv(ch chan Message) (Message, bool) {
	select {
	case m := <-ch:
		return m, true
	case <-time.After(200 * time.Millisecond):
		return Message{}, false
	}
}

func (s *EngineSuite) TestWildcardSingleLevelMatch() {
	ch := make(chan Message, 4)
	s.Require().NoError(s.subscribe("sensors/+/temperature", "c1", ch))
	s.Require().NoError(s.publish("sensors/room1/temperature", []byte("21"), false))

	msg, ok := recv(ch)
	s.Require().True(ok)
	s.Assert().Equal("sensors/room1/temperature", msg.Topic)
	s.Assert().Equal([]byte("21"), msg.Payload)
}

func (s *EngineSuite) TestWildcardMultiLevelMatch() {
	ch := make(chan Message, 4)
	s.Require().NoError(s.subscribe("sensors/#", "c1", ch))
	s.Require().NoError(s.publish("sensors/room1/temperature/raw", []byte("21"), false))

	_, ok := recv(ch)
	s.Require().True(ok)
}

func (s *EngineSuite) TestRetainedDeliveredOnSubscribe() {
	s.Require().NoError(s.publish("status/online", []byte("yes"), true))

	ch := make(chan Message, 4)
	s.Require().NoError(s.subscribe("status/online", "late-joiner", ch))

	msg, ok := recv(ch)
	s.Require().True(ok)
	s.Assert().Equal([]byte("yes"), msg.Payload)
}

func (s *EngineSuite) TestRetainedClearedByEmptyPayload() {
	s.Require().NoError(s.publish("status/online", []byte("yes"), true))
	s.Require().NoError(s.publish("status/online", nil, true))

	ch := make(chan Message, 4)
	s.Require().NoError(s.subscribe("status/online", "late-joiner", ch))

	_, ok := recv(ch)
	s.Assert().False(ok)
}

func (s *EngineSuite) TestPublishToWildcardTopicRejected() {
	s.Assert().Error(s.publish("sensors/+/x", []byte("x"), false))
}

func (s *EngineSuite) TestDisconnectRemovesAllSubscriptions() {
	ch := make(chan Message, 4)
	s.Require().NoError(s.subscribe("a/b", "c1", ch))
	s.Require().NoError(s.subscribe("a/+", "c1", ch))

	reply := make(chan struct{})
	s.Require().NoError(s.engine.Submit(s.Ctx, &DisconnectCmd{ClientID: "c1", Reply: reply}))
	<-reply

	s.Require().NoError(s.publish("a/b", []byte("x"), false))
	_, ok := recv(ch)
	s.Assert().False(ok)
}

func (s *EngineSuite) TestRetainedSurvivesRestart() {
	dir := s.T().TempDir()

	first, err := New(s.fake, 32, dir, persist.FileSync)
	s.Require().NoError(err)
	ctx1, cancel1 := context.WithCancel(s.Ctx)
	go first.Run(ctx1)

	reply := make(chan error, 1)
	s.Require().NoError(first.Submit(s.Ctx, &PublishCmd{Topic: "status/online", Payload: []byte("yes"), Retain: true, Reply: reply}))
	s.Require().NoError(<-reply)
	cancel1()

	second, err := New(s.fake, 32, dir, persist.FileSync)
	s.Require().NoError(err)
	ctx2, cancel2 := context.WithCancel(s.Ctx)
	defer cancel2()
	go second.Run(ctx2)

	ch := make(chan Message, 4)
	subReply := make(chan error, 1)
	s.Require().NoError(second.Submit(s.Ctx, &SubscribeCmd{Pattern: "status/online", ClientID: "c1", Ch: ch, Reply: subReply}))
	s.Require().NoError(<-subReply)

	msg, ok := recv(ch)
	s.Require().True(ok)
	s.Assert().Equal([]byte("yes"), msg.Payload)
}

func TestEngineSuite(t *testing.T) {
	test.Run(t, new(EngineSuite))
}
