package dispatcher

import (
	"context"

	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
)

func persistenceModeFromU8(v uint8) persist.Mode {
	switch v {
	case 1:
		return persist.FileSync
	case 2:
		return persist.FileAsync
	default:
		return persist.Memory
	}
}

func persistenceModeToU8(m persist.Mode) uint8 {
	switch m {
	case persist.FileSync:
		return 1
	case persist.FileAsync:
		return 2
	default:
		return 0
	}
}

func decodePolicy(dec *wire.Decoder) (queue.Policy, error) {
	visibilityMs, err := dec.U64()
	if err != nil {
		return queue.Policy{}, err
	}
	maxRetries, err := dec.U32()
	if err != nil {
		return queue.Policy{}, err
	}
	ttlMs, err := dec.U64()
	if err != nil {
		return queue.Policy{}, err
	}
	persistence, err := dec.U8()
	if err != nil {
		return queue.Policy{}, err
	}
	defaultDelayMs, err := dec.U64()
	if err != nil {
		return queue.Policy{}, err
	}
	return queue.Policy{
		VisibilityTimeout: msToDuration(visibilityMs),
		MaxRetries:        int(maxRetries),
		TTL:               msToDuration(ttlMs),
		Persistence:       persistenceModeFromU8(persistence),
		DefaultDelay:      msToDuration(defaultDelayMs),
	}, nil
}

func (d *Dispatcher) dispatchQueue(ctx context.Context, f *wire.Frame) ([]byte, error) {
	dec := wire.NewDecoder(f.Payload)

	switch f.Command {
	case protocol.QueueCreate:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		if err := validateResourceName(name); err != nil {
			return nil, err
		}
		policy, err := decodePolicy(dec)
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Queue.Submit(ctx, &queue.CreateCmd{Name: name, Policy: policy, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.QueueDelete:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Queue.Submit(ctx, &queue.DeleteCmd{Name: name, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.QueueExists:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan bool, 1)
		if err := d.Queue.Submit(ctx, &queue.ExistsCmd{Name: name, Reply: reply}); err != nil {
			return nil, err
		}
		out := wire.NewEncoder()
		out.PutU8(boolToU8(<-reply))
		return out.Bytes(), nil

	case protocol.QueuePush:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		payload, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		priority, err := dec.U8()
		if err != nil {
			return nil, err
		}
		delayMs, err := dec.U64()
		if err != nil {
			return nil, err
		}
		reply := make(chan queue.PushResult, 1)
		if err := d.Queue.Submit(ctx, &queue.PushCmd{Name: name, Payload: payload, Priority: priority, Delay: msToDuration(delayMs), Reply: reply}); err != nil {
			return nil, err
		}
		res := <-reply
		if res.Err != nil {
			return nil, res.Err
		}
		out := wire.NewEncoder()
		out.PutString(res.ID)
		return out.Bytes(), nil

	case protocol.QueueConsume:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		batchSize, err := dec.U16()
		if err != nil {
			return nil, err
		}
		waitMs, err := dec.U64()
		if err != nil {
			return nil, err
		}
		reply := make(chan queue.ConsumeResult, 1)
		if err := d.Queue.Submit(ctx, &queue.ConsumeCmd{Name: name, BatchSize: int(batchSize), Wait: msToDuration(waitMs), Reply: reply}); err != nil {
			return nil, err
		}
		res := <-reply
		if res.Err != nil {
			return nil, res.Err
		}
		out := wire.NewEncoder()
		out.PutU16(uint16(len(res.Messages)))
		for _, m := range res.Messages {
			out.PutString(m.Handle).PutBytes(m.Payload).PutU32(uint32(m.Attempts)).PutU8(m.Priority)
		}
		return out.Bytes(), nil

	case protocol.QueueAck:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		handle, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Queue.Submit(ctx, &queue.AckCmd{Name: name, Handle: handle, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	case protocol.QueueNack:
		name, err := dec.String()
		if err != nil {
			return nil, err
		}
		handle, err := dec.String()
		if err != nil {
			return nil, err
		}
		reason, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Queue.Submit(ctx, &queue.NackCmd{Name: name, Handle: handle, Reason: reason, Reply: reply}); err != nil {
			return nil, err
		}
		return nil, <-reply

	default:
		return nil, errors.InvalidArgument("unknown queue command", nil)
	}
}
