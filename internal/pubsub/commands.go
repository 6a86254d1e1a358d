package pubsub

import (
	"strings"

	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// SubscribeCmd implements SUBSCRIBE(pattern, client).
type SubscribeCmd struct {
	Pattern  string
	ClientID string
	Ch       chan<- Message
	Reply    chan error
}

func (e *Engine) getOrCreateSubscriber(clientID string, ch chan<- Message) *subscriber {
	sub, ok := e.subscribers[clientID]
	if !ok {
		sub = &subscriber{
			clientID:       clientID,
			ch:             ch,
			concreteTopics: make(map[string]bool),
			wildcards:      make(map[string]bool),
		}
		e.subscribers[clientID] = sub
	}
	return sub
}

func (e *Engine) handleSubscribe(c *SubscribeCmd) error {
	segments := splitTopic(c.Pattern)

	if !hasWildcardSegment(segments) {
		sub := e.getOrCreateSubscriber(c.ClientID, c.Ch)
		n := e.getOrCreateNode(segments)
		n.subscribers[c.ClientID] = sub
		sub.concreteTopics[c.Pattern] = true

		if n.hasRetained {
			deliver(sub, c.Pattern, n.retained)
		}
		return nil
	}

	if err := validatePattern(segments); err != nil {
		return err
	}

	sub := e.getOrCreateSubscriber(c.ClientID, c.Ch)
	if sub.wildcards[c.Pattern] {
		return nil // already subscribed to this exact pattern
	}
	sub.wildcards[c.Pattern] = true

	ws := &wildcardSub{pattern: c.Pattern, segments: segments, sub: sub}
	key := wildcardIndexKeyFor(segments)
	e.wildcardIndex[key] = append(e.wildcardIndex[key], ws)

	e.deliverRetainedMatches(e.root, nil, segments, sub)
	return nil
}

func (e *Engine) getOrCreateNode(segments []string) *node {
	n := e.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			child = newNode()
			n.children[seg] = child
		}
		n = child
	}
	return n
}

// deliverRetainedMatches walks the existing trie delivering any
// retained value whose full path matches pattern.
func (e *Engine) deliverRetainedMatches(n *node, path, pattern []string, sub *subscriber) {
	if n.hasRetained && matchPattern(pattern, path) {
		deliver(sub, strings.Join(path, "/"), n.retained)
	}
	for seg, child := range n.children {
		e.deliverRetainedMatches(child, append(append([]string{}, path...), seg), pattern, sub)
	}
}

func deliver(sub *subscriber, topic string, payload []byte) {
	msg := Message{Topic: topic, Payload: payload}
	select {
	case sub.ch <- msg:
	default:
		// full outgoing buffer: drop this delivery, subscriber stays
		// subscribed per spec §4.6's best-effort fan-out contract.
	}
}

// UnsubscribeCmd removes one client from one pattern.
type UnsubscribeCmd struct {
	Pattern  string
	ClientID string
	Reply    chan struct{}
}

func (e *Engine) handleUnsubscribe(c *UnsubscribeCmd) {
	sub, ok := e.subscribers[c.ClientID]
	if !ok {
		return
	}
	segments := splitTopic(c.Pattern)
	if hasWildcardSegment(segments) {
		delete(sub.wildcards, c.Pattern)
		key := wildcardIndexKeyFor(segments)
		e.wildcardIndex[key] = removeWildcardSub(e.wildcardIndex[key], c.ClientID, c.Pattern)
	} else {
		delete(sub.concreteTopics, c.Pattern)
		n := e.findNode(segments)
		if n != nil {
			delete(n.subscribers, c.ClientID)
		}
	}
}

func removeWildcardSub(list []*wildcardSub, clientID, pattern string) []*wildcardSub {
	out := list[:0]
	for _, ws := range list {
		if ws.sub.clientID == clientID && ws.pattern == pattern {
			continue
		}
		out = append(out, ws)
	}
	return out
}

func (e *Engine) findNode(segments []string) *node {
	n := e.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// DisconnectCmd removes a client from every subscription it holds,
// called by the connection layer on TCP close.
type DisconnectCmd struct {
	ClientID string
	Reply    chan struct{}
}

func (e *Engine) handleDisconnect(c *DisconnectCmd) {
	sub, ok := e.subscribers[c.ClientID]
	if !ok {
		return
	}
	for topic := range sub.concreteTopics {
		n := e.findNode(splitTopic(topic))
		if n != nil {
			delete(n.subscribers, c.ClientID)
		}
	}
	for pattern := range sub.wildcards {
		key := wildcardIndexKeyFor(splitTopic(pattern))
		e.wildcardIndex[key] = removeWildcardSub(e.wildcardIndex[key], c.ClientID, pattern)
	}
	delete(e.subscribers, c.ClientID)
}

// PublishCmd implements PUBLISH(topic, payload, retain?).
type PublishCmd struct {
	Topic   string
	Payload []byte
	Retain  bool
	Reply   chan error
}

func (e *Engine) handlePublish(c *PublishCmd) error {
	segments := splitTopic(c.Topic)
	if hasWildcardSegment(segments) {
		return errors.InvalidArgument("publish topic must be concrete", nil)
	}

	n := e.getOrCreateNode(segments)

	if c.Retain {
		if len(c.Payload) == 0 {
			n.hasRetained = false
			n.retained = nil
			if err := e.appendRetainRecord(c.Topic, nil); err != nil {
				return err
			}
		} else {
			n.hasRetained = true
			n.retained = c.Payload
			n.retainedAt = e.clock.Now()
			if err := e.appendRetainRecord(c.Topic, c.Payload); err != nil {
				return err
			}
		}
	}

	e.mirrorToMQTT(c.Topic, c.Payload, c.Retain)

	for _, sub := range n.subscribers {
		deliver(sub, c.Topic, c.Payload)
	}

	if cands, ok := e.wildcardIndex[segments[0]]; ok {
		for _, ws := range cands {
			if matchPattern(ws.segments, segments) {
				deliver(ws.sub, c.Topic, c.Payload)
			}
		}
	}
	for _, ws := range e.wildcardIndex[wildcardIndexKey] {
		if matchPattern(ws.segments, segments) {
			deliver(ws.sub, c.Topic, c.Payload)
		}
	}

	return nil
}
