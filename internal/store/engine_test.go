package store

import (
	"context"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
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
	s.engine = New(s.fake, 16)

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go s.engine.Run(ctx)
}

func (s *EngineSuite) TearDownTest() {
	s.cancel()
}

func (s *EngineSuite) set(key string, value []byte, ttl time.Duration) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &SetCmd{Key: key, Value: value, TTL: ttl, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) get(key string) GetResult {
	reply := make(chan GetResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &GetCmd{Key: key, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) TestSetGetRoundTrip() {
	s.Require().NoError(s.set("k", []byte("v"), 0))
	res := s.get("k")
	s.Assert().True(res.Found)
	s.Assert().Equal([]byte("v"), res.Value)
}

func (s *EngineSuite) TestGetMissingKeyIsTypedNotFound() {
	res := s.get("missing")
	s.Assert().False(res.Found)
}

func (s *EngineSuite) TestTTLExpiry() {
	s.Require().NoError(s.set("k", []byte("v"), 10*time.Millisecond))
	s.fake.Advance(20 * time.Millisecond)

	// give the engine goroutine a moment to observe the command/tick
	time.Sleep(10 * time.Millisecond)

	res := s.get("k")
	s.Assert().False(res.Found)
}

func (s *EngineSuite) TestDelete() {
	s.Require().NoError(s.set("k", []byte("v"), 0))

	reply := make(chan struct{})
	s.Require().NoError(s.engine.Submit(s.Ctx, &DelCmd{Key: "k", Reply: reply}))
	<-reply

	res := s.get("k")
	s.Assert().False(res.Found)
}

func (s *EngineSuite) TestOversizedValueRejected() {
	big := make([]byte, MaxValueSize+1)
	err := s.set("k", big, 0)
	s.Assert().Error(err)
}

func TestEngineSuite(t *testing.T) {
	test.Run(t, new(EngineSuite))
}
