// Package dispatcher routes decoded wire frames to the engine they
// target and encodes the engine's reply back into a frame, per
// SPEC_FULL.md §4. It holds no state of its own beyond the four engine
// handles — all per-connection state (PubSub delivery channel, Stream
// group memberships) is owned by the caller in internal/server.
package dispatcher

import (
	"context"

	"github.com/emanuel-epifani/nexo/internal/protocol"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/validator"
)

type Dispatcher struct {
	Store  *store.Engine
	Queue  *queue.Engine
	Stream *stream.Engine
	PubSub *pubsub.Engine
}

// Dispatch handles one request frame and returns the response frame to
// write back. pushCh is the calling connection's PubSub delivery
// channel; it is only consulted by a SUBSCRIBE request.
func (d *Dispatcher) Dispatch(ctx context.Context, f *wire.Frame, pushCh chan<- pubsub.Message) *wire.Frame {
	var payload []byte
	var err error

	switch f.Engine {
	case wire.EngineStore:
		payload, err = d.dispatchStore(ctx, f)
	case wire.EngineQueue:
		payload, err = d.dispatchQueue(ctx, f)
	case wire.EngineStream:
		payload, err = d.dispatchStream(ctx, f)
	case wire.EnginePubSub:
		payload, err = d.dispatchPubSub(ctx, f, pushCh)
	default:
		err = errors.InvalidArgument("unknown engine tag", nil)
	}

	return responseFrame(f, payload, err)
}

// validateResourceName rejects a queue or stream topic name that
// would escape its data directory once joined onto rootDir, since
// both names come straight off the wire from the client.
func validateResourceName(name string) error {
	if name == "" {
		return errors.InvalidArgument("name must not be empty", nil)
	}
	if validator.DetectPathTraversal(name) {
		return errors.InvalidArgument("name must not contain path traversal sequences", nil)
	}
	return nil
}

func responseFrame(req *wire.Frame, payload []byte, err error) *wire.Frame {
	enc := wire.NewEncoder()
	if err != nil {
		enc.PutU8(uint8(wire.StatusErr)).PutString(errors.Code(err)).PutString(err.Error())
	} else {
		enc.PutU8(uint8(wire.StatusOK)).PutRaw(payload)
	}
	return &wire.Frame{
		Engine:        req.Engine,
		Command:       req.Command,
		Kind:          wire.KindResponse,
		CorrelationID: req.CorrelationID,
		Payload:       enc.Bytes(),
	}
}

func (d *Dispatcher) dispatchStore(ctx context.Context, f *wire.Frame) ([]byte, error) {
	dec := wire.NewDecoder(f.Payload)

	switch f.Command {
	case protocol.StoreSet:
		key, err := dec.String()
		if err != nil {
			return nil, err
		}
		value, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		ttlMs, err := dec.U64()
		if err != nil {
			return nil, err
		}
		reply := make(chan error, 1)
		if err := d.Store.Submit(ctx, &store.SetCmd{Key: key, Value: value, TTL: msToDuration(ttlMs), Reply: reply}); err != nil {
			return nil, err
		}
		if err := <-reply; err != nil {
			return nil, err
		}
		return nil, nil

	case protocol.StoreGet:
		key, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan store.GetResult, 1)
		if err := d.Store.Submit(ctx, &store.GetCmd{Key: key, Reply: reply}); err != nil {
			return nil, err
		}
		res := <-reply
		out := wire.NewEncoder()
		out.PutU8(boolToU8(res.Found)).PutBytes(res.Value)
		return out.Bytes(), nil

	case protocol.StoreDel:
		key, err := dec.String()
		if err != nil {
			return nil, err
		}
		reply := make(chan struct{}, 1)
		if err := d.Store.Submit(ctx, &store.DelCmd{Key: key, Reply: reply}); err != nil {
			return nil, err
		}
		<-reply
		return nil, nil

	case protocol.StoreLen:
		reply := make(chan int, 1)
		if err := d.Store.Submit(ctx, &store.LenCmd{Reply: reply}); err != nil {
			return nil, err
		}
		out := wire.NewEncoder()
		out.PutU32(uint32(<-reply))
		return out.Bytes(), nil

	default:
		return nil, errors.InvalidArgument("unknown store command", nil)
	}
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
