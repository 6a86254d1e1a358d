// Package supervisor restarts an engine's mailbox loop when it aborts
// on an unrecovered internal invariant violation, instead of letting
// one bad command take the whole process down.
//
// Each engine already recovers per-command errors inside its own
// dispatch; a panic that still escapes Run means something violated
// an invariant the engine couldn't reason about locally (a corrupted
// heap index, a nil that should never be nil). Run's heap-allocated
// state — the queues/topics/subscriptions map — survives the panic
// unwind untouched, since only the goroutine's stack unwinds; what the
// supervisor restarts is the mailbox-draining loop itself. Any message
// durably logged before the panic is still on disk and gets replayed
// the next time its queue or partition is (re)opened, per each
// engine's own replay path.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// Engine is the slice of behavior every broker engine exposes: a
// blocking run loop that drains its mailbox until ctx is canceled.
type Engine interface {
	Run(ctx context.Context) error
}

const maxBackoff = 5 * time.Second

// Run supervises one engine's Run loop for the lifetime of ctx,
// restarting it with exponential backoff whenever it panics. name
// identifies the engine in logs ("store", "queue", "stream", "pubsub").
func Run(ctx context.Context, name string, e Engine) {
	backoff := 100 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return
		}
		if runOnce(ctx, name, e) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runOnce runs e.Run once, recovering a panic into a logged restart
// signal. It returns true when the engine should not be restarted
// (clean shutdown, or ctx already canceled).
func runOnce(ctx context.Context, name string, e Engine) (done bool) {
	log := logger.Named(name)
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "engine aborted, restarting",
				"error", fmt.Errorf("panic: %v", r),
				"stack", string(debug.Stack()))
			done = false
		}
	}()
	err := e.Run(ctx)
	if err != nil {
		log.ErrorContext(ctx, "engine run returned error, restarting", "error", err)
		return ctx.Err() != nil
	}
	return true
}
