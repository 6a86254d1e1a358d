package stream

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/logger"
	"github.com/emanuel-epifani/nexo/pkg/streaming"
)

// retentionSweepInterval is how often the background retention task
// runs. It rides the same mailbox goroutine as every other mutation,
// so it costs a cheap no-op pass on idle topics rather than a
// per-topic goroutine.
const retentionSweepInterval = time.Second

// Engine owns every topic by name.
type Engine struct {
	mailbox chan any
	clock   clock.Clock
	rootDir string

	topics map[string]*topicState

	sink streaming.Client
}

func New(c clock.Clock, mailboxSize int, rootDir string, opts ...Option) *Engine {
	e := &Engine{
		mailbox: make(chan any, mailboxSize),
		clock:   c,
		rootDir: rootDir,
		topics:  make(map[string]*topicState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Submit(ctx context.Context, cmd any) error {
	select {
	case e.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	defer func() {
		for _, t := range e.topics {
			for _, p := range t.partitions {
				_ = p.log.Close()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.sweepRetention()
		case cmd, ok := <-e.mailbox:
			if !ok {
				return nil
			}
			e.dispatch(cmd)
		}
	}
}

func (e *Engine) dispatch(cmd any) {
	switch c := cmd.(type) {
	case *CreateCmd:
		c.Reply <- e.handleCreate(c)
	case *DeleteCmd:
		c.Reply <- e.handleDelete(c)
	case *PublishCmd:
		c.Reply <- e.handlePublish(c)
	case *JoinCmd:
		c.Reply <- e.handleJoin(c)
	case *FetchCmd:
		c.Reply <- e.handleFetch(c)
	case *CommitCmd:
		c.Reply <- e.handleCommit(c)
	case *LeaveCmd:
		c.Reply <- e.handleLeave(c)
	case *SnapshotCmd:
		c.Reply <- e.handleSnapshot()
	case *MessagesCmd:
		c.Reply <- e.handleMessages(c)
	default:
		logger.L().Error("stream engine received unknown command type")
	}
}

// CreateCmd implements CREATE(topic, { partitions, persistence, retention }).
type CreateCmd struct {
	Topic       string
	Partitions  int
	Persistence persist.Mode
	Retention   Retention
	Reply       chan error
}

func (e *Engine) handleCreate(c *CreateCmd) error {
	if _, ok := e.topics[c.Topic]; ok {
		return nil // idempotent: topics carry no mutable policy to conflict on
	}

	n := c.Partitions
	if n <= 0 {
		n = DefaultPartitions
	}

	t := &topicState{
		name:        c.Topic,
		persistence: c.Persistence,
		retention:   c.Retention,
		groups:      make(map[string]*group),
	}

	for i := 0; i < n; i++ {
		dir := filepath.Join(e.rootDir, c.Topic, partitionDirName(i))
		log, err := persist.Open(dir, c.Persistence)
		if err != nil {
			return err
		}
		p := &partition{id: i, log: log}
		t.partitions = append(t.partitions, p)
		if err := e.replayPartition(t, p); err != nil {
			return err
		}
	}

	e.topics[c.Topic] = t
	return nil
}

func partitionDirName(id int) string {
	return "p" + strconv.Itoa(id)
}

// DeleteCmd implements DELETE(topic).
type DeleteCmd struct {
	Topic string
	Reply chan error
}

func (e *Engine) handleDelete(c *DeleteCmd) error {
	t, ok := e.topics[c.Topic]
	if !ok {
		return nil
	}
	for _, p := range t.partitions {
		_ = p.log.Close()
	}
	delete(e.topics, c.Topic)
	return nil
}

func sortedMemberIDs(g *group) []string {
	ids := make([]string, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// rebalance recomputes partition assignment across a group's current
// members, round-robin by sorted member id, and bumps the generation.
func rebalance(t *topicState, g *group) {
	g.generationID++
	ids := sortedMemberIDs(g)
	for _, m := range g.members {
		m.assigned = nil
	}
	if len(ids) == 0 {
		return
	}
	for _, p := range t.partitions {
		owner := ids[p.id%len(ids)]
		g.members[owner].assigned = append(g.members[owner].assigned, p.id)
	}
}
