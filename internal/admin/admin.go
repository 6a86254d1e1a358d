// Package admin exposes the read-only HTTP snapshot surface described
// in SPEC_FULL.md §3.4/§4.8: one echo route per engine. The Queue and
// Stream summaries are cached briefly so concurrent requests do not
// pile queries onto the mailboxes they are trying to observe. cmd/nexod
// does not mount the surface at all when NEXO_ENV=prod (see NewEcho).
package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/pkg/cache"
	"github.com/emanuel-epifani/nexo/pkg/cache/adapters/memory"
	"github.com/emanuel-epifani/nexo/pkg/concurrency"
	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// snapshotTTL bounds how stale a cached admin response may be. Short
// enough that an operator never mistakes it for live state, long
// enough that a burst of concurrent requests is answered by a single
// engine query. A dashboard polling less often than this queries the
// engine on every poll.
const snapshotTTL = 200 * time.Millisecond

type Router struct {
	Store  *store.Engine
	Queue  *queue.Engine
	Stream *stream.Engine
	PubSub *pubsub.Engine

	cache      cache.Cache
	populateMu *concurrency.SmartMutex
}

// NewEcho builds the admin HTTP surface. Callers are expected to skip
// mounting this entirely when NEXO_ENV=prod, as cmd/nexod does; the
// router itself stays agnostic of that decision.
func NewEcho(r *Router) *echo.Echo {
	if r.cache == nil {
		r.cache = memory.New()
	}
	if r.populateMu == nil {
		r.populateMu = concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "admin-snapshot-cache", DebugMode: true})
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("nexo-admin"))
	e.Use(middleware.Recover())

	e.GET("/api/store", r.getStore)
	e.GET("/api/queue", r.getQueue)
	e.GET("/api/queue/:name/messages", r.getQueueMessages)
	e.GET("/api/stream", r.getStream)
	e.GET("/api/stream/:topic/:partition/messages", r.getStreamMessages)
	e.GET("/api/pubsub", r.getPubSub)

	return e
}

// cached serves key from c, populating it on a miss. mu serializes the
// populate step so N concurrent requests for the same cold key run
// fetch once instead of N times (a stampede against the engine mailbox
// behind it) — every echo request runs on its own goroutine, unlike
// the single-owner engines it is querying.
func cached[T any](ctx context.Context, c cache.Cache, mu *concurrency.SmartMutex, key string, fetch func() T) T {
	var out T
	if err := c.Get(ctx, key, &out); err == nil {
		return out
	}
	mu.Lock()
	defer mu.Unlock()
	if err := c.Get(ctx, key, &out); err == nil {
		return out
	}
	out = fetch()
	if err := c.Set(ctx, key, out, snapshotTTL); err != nil {
		logger.L().WarnContext(ctx, "admin cache set failed", "key", key, "error", err)
	}
	return out
}

func pageParams(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return
}

func (r *Router) getStore(c echo.Context) error {
	limit, offset := pageParams(c)
	reply := make(chan store.Snapshot, 1)
	if err := r.Store.Submit(c.Request().Context(), &store.SnapshotCmd{Limit: limit, Offset: offset, Reply: reply}); err != nil {
		return err
	}
	snap := <-reply
	return c.JSON(http.StatusOK, snap)
}

func (r *Router) getQueue(c echo.Context) error {
	snap := cached(c.Request().Context(), r.cache, r.populateMu, "queue:snapshot", func() []queue.QueueSummary {
		reply := make(chan []queue.QueueSummary, 1)
		if err := r.Queue.Submit(c.Request().Context(), &queue.SnapshotCmd{Reply: reply}); err != nil {
			return nil
		}
		return <-reply
	})
	return c.JSON(http.StatusOK, snap)
}

func (r *Router) getQueueMessages(c echo.Context) error {
	limit, offset := pageParams(c)
	reply := make(chan queue.MessagesResult, 1)
	cmd := &queue.MessagesCmd{Name: c.Param("name"), Limit: limit, Offset: offset, Reply: reply}
	if err := r.Queue.Submit(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, <-reply)
}

func (r *Router) getStream(c echo.Context) error {
	snap := cached(c.Request().Context(), r.cache, r.populateMu, "stream:snapshot", func() []stream.TopicSummary {
		reply := make(chan []stream.TopicSummary, 1)
		if err := r.Stream.Submit(c.Request().Context(), &stream.SnapshotCmd{Reply: reply}); err != nil {
			return nil
		}
		return <-reply
	})
	return c.JSON(http.StatusOK, snap)
}

func (r *Router) getStreamMessages(c echo.Context) error {
	partition, err := strconv.Atoi(c.Param("partition"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid partition")
	}
	from, _ := strconv.ParseUint(c.QueryParam("from"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	reply := make(chan stream.MessagesResult, 1)
	cmd := &stream.MessagesCmd{Topic: c.Param("topic"), Partition: partition, From: from, Limit: limit, Reply: reply}
	if err := r.Stream.Submit(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, <-reply)
}

func (r *Router) getPubSub(c echo.Context) error {
	limit, offset := pageParams(c)
	reply := make(chan pubsub.Snapshot, 1)
	cmd := &pubsub.SnapshotCmd{Limit: limit, Offset: offset, Search: c.QueryParam("search"), Reply: reply}
	if err := r.PubSub.Submit(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, <-reply)
}
