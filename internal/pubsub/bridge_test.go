package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (doneToken) Error() error                   { return nil }

type fakeMQTTClient struct {
	mu        sync.Mutex
	published []fakePublish
}

type fakePublish struct {
	topic   string
	retain  bool
	payload []byte
}

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakePublish{topic: topic, retain: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (f *fakeMQTTClient) snapshot() []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePublish(nil), f.published...)
}

type MQTTBridgeSuite struct {
	test.Suite
	engine *Engine
	bridge *fakeMQTTClient
	cancel context.CancelFunc
}

func (s *MQTTBridgeSuite) SetupTest() {
	s.Suite.SetupTest()
	fake := clock.NewFake(time.Unix(0, 0))
	s.bridge = &fakeMQTTClient{}

	engine, err := New(fake, 32, s.T().TempDir(), persist.Memory, WithMQTTBridge(s.bridge))
	s.Require().NoError(err)
	s.engine = engine

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go s.engine.Run(ctx)
}

func (s *MQTTBridgeSuite) TearDownTest() {
	s.cancel()
}

func (s *MQTTBridgeSuite) TestPublishMirroredToMQTT() {
	reply := make(chan error, 1)
	s.Require().NoError(s.engine.Submit(s.Ctx, &PublishCmd{Topic: "sensors/temp", Payload: []byte("21.5"), Reply: reply}))
	s.Require().NoError(<-reply)

	s.Require().Eventually(func() bool {
		return len(s.bridge.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	got := s.bridge.snapshot()[0]
	s.Assert().Equal("sensors/temp", got.topic)
	s.Assert().Equal([]byte("21.5"), got.payload)
}

func TestMQTTBridgeSuite(t *testing.T) {
	test.Run(t, new(MQTTBridgeSuite))
}
