package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/pkg/test"
)

type AdminSuite struct {
	test.Suite
	router *Router
	cancel context.CancelFunc
}

func (s *AdminSuite) SetupTest() {
	s.Suite.SetupTest()

	fake := clock.NewFake(time.Unix(0, 0))
	dir := s.T().TempDir()

	storeEngine := store.New(fake, 32)
	queueEngine := queue.New(fake, 32, dir)
	streamEngine := stream.New(fake, 32, dir)
	pubsubEngine, err := pubsub.New(fake, 32, dir, persist.Memory)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	go storeEngine.Run(ctx)
	go queueEngine.Run(ctx)
	go streamEngine.Run(ctx)
	go pubsubEngine.Run(ctx)

	s.router = &Router{Store: storeEngine, Queue: queueEngine, Stream: streamEngine, PubSub: pubsubEngine}
}

func (s *AdminSuite) TearDownTest() {
	s.cancel()
}

func (s *AdminSuite) TestGetStoreReturnsSnapshotAfterSet() {
	reply := make(chan error, 1)
	s.Require().NoError(s.router.Store.Submit(s.Ctx, &store.SetCmd{Key: "a", Value: []byte("b"), Reply: reply}))
	s.Require().NoError(<-reply)

	e := NewEcho(s.router)
	req := httptest.NewRequest(http.MethodGet, "/api/store", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	s.Assert().Equal(http.StatusOK, rec.Code)
	s.Assert().Contains(rec.Body.String(), `"key":"a"`)
}

func (s *AdminSuite) TestGetQueueEmptySnapshot() {
	e := NewEcho(s.router)
	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	s.Assert().Equal(http.StatusOK, rec.Code)
}

func (s *AdminSuite) TestGetPubSubReflectsSubscription() {
	ch := make(chan pubsub.Message, 1)
	reply := make(chan error, 1)
	s.Require().NoError(s.router.PubSub.Submit(s.Ctx, &pubsub.SubscribeCmd{Pattern: "a/b", ClientID: "c1", Ch: ch, Reply: reply}))
	s.Require().NoError(<-reply)

	e := NewEcho(s.router)
	req := httptest.NewRequest(http.MethodGet, "/api/pubsub", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	s.Assert().Equal(http.StatusOK, rec.Code)
	s.Assert().Contains(rec.Body.String(), `"active_clients":1`)
}

func TestAdminSuite(t *testing.T) {
	test.Run(t, new(AdminSuite))
}
