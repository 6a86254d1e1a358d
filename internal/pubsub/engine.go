package pubsub

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/logger"
)

const retainedLogDir = "retained"

// Engine owns the topic trie, the wildcard index, and every known
// subscriber. Retained values are the only durable unit PubSub has
// (spec §4.7); everything else here is rebuilt from scratch on every
// restart, same as a fresh connection would see.
type Engine struct {
	mailbox chan any
	clock   clock.Clock

	root          *node
	wildcardIndex map[string][]*wildcardSub
	subscribers   map[string]*subscriber

	retainedDir string
	retainedLog *persist.Log

	mqttBridge MQTTPublisher
}

func New(c clock.Clock, mailboxSize int, rootDir string, persistence persist.Mode, opts ...Option) (*Engine, error) {
	dir := filepath.Join(rootDir, retainedLogDir)
	log, err := persist.Open(dir, persistence)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		mailbox:       make(chan any, mailboxSize),
		clock:         c,
		root:          newNode(),
		wildcardIndex: make(map[string][]*wildcardSub),
		subscribers:   make(map[string]*subscriber),
		retainedDir:   dir,
		retainedLog:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.replayRetained(); err != nil {
		log.Close()
		return nil, err
	}
	return e, nil
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
	defer e.retainedLog.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
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
	case *SubscribeCmd:
		c.Reply <- e.handleSubscribe(c)
	case *UnsubscribeCmd:
		e.handleUnsubscribe(c)
		close(c.Reply)
	case *DisconnectCmd:
		e.handleDisconnect(c)
		close(c.Reply)
	case *PublishCmd:
		c.Reply <- e.handlePublish(c)
	case *SnapshotCmd:
		c.Reply <- e.handleSnapshot(c)
	default:
		logger.L().Error("pubsub engine received unknown command type")
	}
}

func splitTopic(topic string) []string {
	return strings.Split(topic, "/")
}

func hasWildcardSegment(segments []string) bool {
	for _, s := range segments {
		if s == wildcardSingle || s == wildcardMulti {
			return true
		}
	}
	return false
}

// validatePattern enforces MQTT's wildcard placement rules: '#' only
// as the final segment, and a segment is either a plain literal or
// exactly one whole wildcard, never a mix.
func validatePattern(segments []string) error {
	for i, seg := range segments {
		if strings.Contains(seg, wildcardMulti) && seg != wildcardMulti {
			return errors.InvalidArgument("# must occupy its whole segment", nil)
		}
		if strings.Contains(seg, wildcardSingle) && seg != wildcardSingle {
			return errors.InvalidArgument("+ must occupy its whole segment", nil)
		}
		if seg == wildcardMulti && i != len(segments)-1 {
			return errors.InvalidArgument("# is only valid as the final segment", nil)
		}
	}
	return nil
}

func wildcardIndexKeyFor(segments []string) string {
	if segments[0] == wildcardSingle || segments[0] == wildcardMulti {
		return wildcardIndexKey
	}
	return segments[0]
}

// matchPattern applies MQTT wildcard semantics: '+' matches exactly
// one segment, '#' matches zero or more remaining segments.
func matchPattern(pattern, topic []string) bool {
	i := 0
	for ; i < len(pattern); i++ {
		if pattern[i] == wildcardMulti {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if pattern[i] == wildcardSingle {
			continue
		}
		if pattern[i] != topic[i] {
			return false
		}
	}
	return i == len(topic)
}
