package stream

import (
	"context"
	"encoding/binary"
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

func (s *EngineSuite) create(topic string, partitions int) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &CreateCmd{
		Topic: topic, Partitions: partitions, Persistence: persist.Memory, Reply: reply,
	}))
	return <-reply
}

func (s *EngineSuite) publish(topic string, payload []byte) PublishResult {
	reply := make(chan PublishResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &PublishCmd{Topic: topic, Payload: payload, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) join(topic, group, clientID string) JoinResult {
	reply := make(chan JoinResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &JoinCmd{Topic: topic, Group: group, ClientID: clientID, Reply: reply}))
	return <-reply
}

func (s *EngineSuite) fetch(topic, group string, gen uint64, partition int, from uint64) FetchResult {
	reply := make(chan FetchResult, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &FetchCmd{
		Topic: topic, Group: group, GenerationID: gen, Partition: partition, FromOffset: from, Limit: 100, Reply: reply,
	}))
	return <-reply
}

func (s *EngineSuite) commit(topic, group string, gen uint64, partition int, next uint64) error {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &CommitCmd{
		Topic: topic, Group: group, GenerationID: gen, Partition: partition, NextOffset: next, Reply: reply,
	}))
	return <-reply
}

func seqPayload(n int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func seqOf(payload []byte) int {
	return int(binary.BigEndian.Uint64(payload))
}

func (s *EngineSuite) TestPublishFetchInOrder() {
	s.Require().NoError(s.create("basic-order", 1))

	for i := 1; i <= 3; i++ {
		s.publish("basic-order", seqPayload(i))
	}

	joined := s.join("basic-order", "g1", "c1")
	s.Require().NoError(joined.Err)
	s.Require().Equal([]int{0}, joined.Assigned)

	res := s.fetch("basic-order", "g1", joined.GenerationID, 0, 0)
	s.Require().NoError(res.Err)
	s.Require().Len(res.Records, 3)
	s.Assert().Equal(1, seqOf(res.Records[0].Payload))
	s.Assert().Equal(2, seqOf(res.Records[1].Payload))
	s.Assert().Equal(3, seqOf(res.Records[2].Payload))
}

func (s *EngineSuite) TestSubscribeNonexistentFailsFast() {
	res := s.join("ghost", "g1", "c1")
	s.Assert().Error(res.Err)
}

func (s *EngineSuite) TestCommitIsMonotonic() {
	s.Require().NoError(s.create("t", 1))
	s.publish("t", seqPayload(0))
	s.publish("t", seqPayload(1))

	joined := s.join("t", "g1", "c1")
	s.Require().NoError(s.commit("t", "g1", joined.GenerationID, 0, 2))
	s.Require().NoError(s.commit("t", "g1", joined.GenerationID, 0, 1)) // stale, dropped silently

	reply := make(chan []TopicSummary, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &SnapshotCmd{Reply: reply}))
	summaries := <-reply
	s.Require().Len(summaries, 1)
	s.Assert().EqualValues(2, summaries[0].Partitions[0].Groups[0].CommittedOffset)
}

func (s *EngineSuite) TestFetchWithStaleGenerationRejected() {
	s.Require().NoError(s.create("t", 1))
	joined := s.join("t", "g1", "c1")
	s.join("t", "g1", "c2") // second member triggers a rebalance, bumps generation

	res := s.fetch("t", "g1", joined.GenerationID, 0, 0)
	s.Assert().Error(res.Err)
}

func (s *EngineSuite) TestRebalanceCoverage() {
	s.Require().NoError(s.create("integrity", 4))

	for i := 0; i < 25; i++ {
		s.publish("integrity", seqPayload(i))
	}

	a := s.join("integrity", "g-integrity", "consumer-a")
	seen := map[int]bool{}
	drain := func(assignment []int, gen uint64) {
		for _, part := range assignment {
			res := s.fetch("integrity", "g-integrity", gen, part, 0)
			if res.Err != nil {
				continue
			}
			for _, rec := range res.Records {
				seen[seqOf(rec.Payload)] = true
			}
			if len(res.Records) > 0 {
				s.commit("integrity", "g-integrity", gen, part, res.Records[len(res.Records)-1].Offset+1)
			}
		}
	}
	drain(a.Assigned, a.GenerationID)

	b := s.join("integrity", "g-integrity", "consumer-b")
	for i := 25; i < 50; i++ {
		s.publish("integrity", seqPayload(i))
	}

	// re-join is idempotent and returns each member's post-rebalance assignment
	a2 := s.join("integrity", "g-integrity", "consumer-a")
	drain(a2.Assigned, a2.GenerationID)
	drain(b.Assigned, b.GenerationID)

	s.Assert().Len(seen, 50)
	for i := 0; i < 50; i++ {
		s.Assert().True(seen[i], "missing id %d", i)
	}
}

func TestEngineSuite(t *testing.T) {
	test.Run(t, new(EngineSuite))
}
