package dispatcher

import (
	"context"

	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
)

func (d *Dispatcher) dispatchPubSub(ctx context.Context, f *wire.Frame, pushCh chan<- pubsub.Message) ([]byte, error) {
	dec := wire.NewDecoder(f.Payload)

	switch f.Command {
	case protocol.PubSubSubscribe:
		pattern, err := dec.String()
		if err != nil {
			return nil, err
		}
		clientID, err := dec.String()
		if err != nil {
			return nil, err
		}
		if pushCh == nil {
			return nil, errors.Internal("connection has no push channel for subscribe", nil)
		}
		reply := make(chan error, 1)
		cmd := &pubsub.SubscribeCmd{Pattern: pattern, ClientID: clientID, Ch: pushCh, Reply: reply}
		if err := d.PubSub.Submit(ctx, cmd); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.PubSubUnsubscribe:
		pattern, err := dec.String()
		if err != nil {
			return nil, err
		}
		clientID, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan struct{}, 1)
		if err := d.PubSub.Submit(ctx, &pubsub.UnsubscribeCmd{Pattern: pattern, ClientID: clientID, Reply: reply}); err != nil {
			return nil, err
		}
		<-reply
		return nil, nil

	case protocol.PubSubPublish:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		payload, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		retain, err := dec.U8()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		cmd := &pubsub.PublishCmd{Topic: topic, Payload: payload, Retain: retain != 0, Reply: reply}
		if err := d.PubSub.Submit(ctx, cmd); err != nil {
			return nil, err
		}
		return nil, <-reply

	default:
		return nil, errors.InvalidArgument("unknown pubsub command", nil)
	}
}
