package dispatcher

import (
	"context"

	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
)

func (d *Dispatcher) dispatchStream(ctx context.Context, f *wire.Frame) ([]byte, error) {
	dec := wire.NewDecoder(f.Payload)

	switch f.Command {
	case protocol.StreamCreate:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		if err := validateResourceName(topic); err != nil {
			return nil, err
		}
		partitions, err := dec.U16()
		if err != nil {
			return nil, err
		}
		persistence, err := dec.U8()
		if err != nil {
			return nil, err
		}
		maxAgeMs, err := dec.U64()
		if err != nil {
			return nil, err
		}
		maxBytes, err := dec.U64()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		cmd := &stream.CreateCmd{
			Topic:       topic,
			Partitions:  int(partitions),
			Persistence: persistenceModeFromU8(persistence),
			Retention:   stream.Retention{MaxAge: msToDuration(maxAgeMs), MaxBytes: int64(maxBytes)},
			Reply:       reply,
		}
		if err := d.Stream.Submit(ctx, cmd); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.StreamDelete:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Stream.Submit(ctx, &stream.DeleteCmd{Topic: topic, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.StreamPublish:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		payload, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		reply := make(chan stream.PublishResult, 1)
		if err := d.Stream.Submit(ctx, &stream.PublishCmd{Topic: topic, Payload: payload, Reply: reply}); err != nil {
			return nil, err
		}
		res := <-reply
		if res.Err != nil {
			return nil, res.Err
		}
		out := wire.NewEncoder()
		out.PutU16(uint16(res.Partition)).PutU64(res.Offset)
		return out.Bytes(), nil

	case protocol.StreamJoin:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		group, err := dec.String()
		if err != nil {
			return nil, err
		}
		clientID, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan stream.JoinResult, 1)
		if err := d.Stream.Submit(ctx, &stream.JoinCmd{Topic: topic, Group: group, ClientID: clientID, Reply: reply}); err != nil {
			return nil, err
		}
		res := <-reply
		if res.Err != nil {
			return nil, res.Err
		}
		out := wire.NewEncoder()
		out.PutU64(res.GenerationID).PutU16(uint16(len(res.Assigned)))
		for _, p := range res.Assigned {
			out.PutU16(uint16(p))
		}
		return out.Bytes(), nil

	case protocol.StreamLeave:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		group, err := dec.String()
		if err != nil {
			return nil, err
		}
		clientID, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Stream.Submit(ctx, &stream.LeaveCmd{Topic: topic, Group: group, ClientID: clientID, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.StreamFetch:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		group, err := dec.String()
		if err != nil {
			return nil, err
		}
		generationID, err := dec.U64()
		if err != nil {
			return nil, err
		}
		partition, err := dec.U16()
		if err != nil {
			return nil, err
		}
		fromOffset, err := dec.U64()
		if err != nil {
			return nil, err
		}
		limit, err := dec.U16()
		if err != nil {
			return nil, err
		}
		reply := make(chan stream.FetchResult, 1)
		cmd := &stream.FetchCmd{
			Topic: topic, Group: group, GenerationID: generationID,
			Partition: int(partition), FromOffset: fromOffset, Limit: int(limit),
			Reply: reply,
		}
		if err := d.Stream.Submit(ctx, cmd); err != nil {
			return nil, err
		}
		res := <-reply
		if res.Err != nil {
			return nil, res.Err
		}
		out := wire.NewEncoder()
		out.PutU16(uint16(len(res.Records)))
		for _, rec := range res.Records {
			out.PutU64(rec.Offset).PutU64(uint64(rec.Timestamp.UnixNano())).PutBytes(rec.Payload)
		}
		return out.Bytes(), nil

	case protocol.StreamCommit:
		topic, err := dec.String()
		if err != nil {
			return nil, err
		}
		group, err := dec.String()
		if err != nil {
			return nil, err
		}
		generationID, err := dec.U64()
		if err != nil {
			return nil, err
		}
		partition, err := dec.U16()
		if err != nil {
			return nil, err
		}
		nextOffset, err := dec.U64()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		cmd := &stream.CommitCmd{
			Topic: topic, Group: group, GenerationID: generationID,
			Partition: int(partition), NextOffset: nextOffset, Reply: reply,
		}
		if err := d.Stream.Submit(ctx, cmd); err != nil {
			return nil, err
		}
		return nil, <-reply

	default:
		return nil, errors.InvalidArgument("unknown stream command", nil)
	}
}
