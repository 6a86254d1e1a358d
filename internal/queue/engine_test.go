package queue

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
	s.engine = New(s.fake, 32, s.T().TempDir())

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go s.engine.Run(ctx)
}

func (s *EngineSuite) TearDownTest() {
	s.cancel()
}

func (s *EngineSuite) create(name string, policy Policy) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &CreateCmd{Name: name, Policy: policy, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) push(name string, payload []byte, priority uint8) PushResult {
	reply := make(chan PushResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &PushCmd{Name: name, Payload: payload, Priority: priority, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) consume(name string, batch int, wait time.Duration) ConsumeResult {
	reply := make(chan ConsumeResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &ConsumeCmd{Name: name, BatchSize: batch, Wait: wait, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) ack(name, handle string) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &AckCmd{Name: name, Handle: handle, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) nack(name, handle, reason string) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &NackCmd{Name: name, Handle: handle, Reason: reason, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) defaultPolicy() Policy {
	return Policy{
		VisibilityTimeout: 50 * time.Millisecond,
		MaxRetries:        2,
		Persistence:       persist.Memory,
	}
}

func (s *EngineSuite) TestLifecycleAckRemovesMessage() {
	policy := s.defaultPolicy()
	s.Require().NoError(s.create("jobs", policy))

	pushed := s.push("jobs", []byte("work"), 0)
	s.Require().NoError(pushed.Err)
	s.Require().NotEmpty(pushed.ID)

	res := s.consume("jobs", 1, 0)
	s.Require().NoError(res.Err)
	s.Require().Len(res.Messages, 1)
	s.Assert().Equal([]byte("work"), res.Messages[0].Payload)
	s.Assert().Equal(1, res.Messages[0].Attempts)

	s.Require().NoError(s.ack("jobs", res.Messages[0].Handle))

	// nothing left to deliver
	empty := s.consume("jobs", 1, 0)
	s.Require().NoError(empty.Err)
	s.Assert().Empty(empty.Messages)
}

func (s *EngineSuite) TestCreateIsIdempotentForSamePolicy() {
	policy := s.defaultPolicy()
	s.Require().NoError(s.create("jobs", policy))
	s.Require().NoError(s.create("jobs", policy))
}

func (s *EngineSuite) TestCreateRejectsPolicyMismatch() {
	s.Require().NoError(s.create("jobs", s.defaultPolicy()))

	other := s.defaultPolicy()
	other.MaxRetries = 9
	s.Assert().Error(s.create("jobs", other))
}

func (s *EngineSuite) TestPushToMissingQueueFailsFast() {
	res := s.push("ghost", []byte("x"), 0)
	s.Assert().Error(res.Err)
}

func (s *EngineSuite) TestPriorityOrderingThenFIFO() {
	s.Require().NoError(s.create("jobs", s.defaultPolicy()))

	s.push("jobs", []byte("low-1"), 1)
	s.push("jobs", []byte("high-1"), 9)
	s.push("jobs", []byte("low-2"), 1)
	s.push("jobs", []byte("high-2"), 9)

	res := s.consume("jobs", 4, 0)
	s.Require().Len(res.Messages, 4)
	s.Assert().Equal([]byte("high-1"), res.Messages[0].Payload)
	s.Assert().Equal([]byte("high-2"), res.Messages[1].Payload)
	s.Assert().Equal([]byte("low-1"), res.Messages[2].Payload)
	s.Assert().Equal([]byte("low-2"), res.Messages[3].Payload)
}

func (s *EngineSuite) TestNackBeyondMaxRetriesPromotesToDLQ() {
	policy := s.defaultPolicy()
	policy.MaxRetries = 1
	s.Require().NoError(s.create("jobs", policy))

	s.push("jobs", []byte("poison"), 0)

	delivered := s.consume("jobs", 1, 0)
	s.Require().Len(delivered.Messages, 1)
	handle := delivered.Messages[0].Handle

	s.Require().NoError(s.nack("jobs", handle, "boom"))

	dlq := s.consume("jobs_dlq", 1, 0)
	s.Require().NoError(dlq.Err)
	s.Require().Len(dlq.Messages, 1)
	s.Assert().Equal([]byte("poison"), dlq.Messages[0].Payload)
}

func (s *EngineSuite) TestAckIsIdempotent() {
	s.Require().NoError(s.create("jobs", s.defaultPolicy()))
	s.push("jobs", []byte("work"), 0)

	delivered := s.consume("jobs", 1, 0)
	s.Require().Len(delivered.Messages, 1)
	handle := delivered.Messages[0].Handle

	s.Require().NoError(s.ack("jobs", handle))
	s.Require().NoError(s.ack("jobs", handle))
}

func (s *EngineSuite) TestLongPollWakesOnPush() {
	s.Require().NoError(s.create("jobs", s.defaultPolicy()))

	resultCh := make(chan ConsumeResult, 1)
	go func() {
		resultCh <- s.consume("jobs", 1, 500*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	s.push("jobs", []byte("late"), 0)

	select {
	case res := <-resultCh:
		s.Require().Len(res.Messages, 1)
		s.Assert().Equal([]byte("late"), res.Messages[0].Payload)
	case <-time.After(time.Second):
		s.FailNow("long poll never woke up")
	}
}

func TestEngineSuite(t *testing.T) {
	test.Run(t, new(EngineSuite))
}
