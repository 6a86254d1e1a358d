package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// SafeGo runs fn in its own goroutine and recovers any panic into a
// logged error instead of taking down the process — every engine
// worker goroutine (queue's per-queue waker, server's connection
// handlers) is started this way so one malformed command can't crash
// the broker.
func SafeGo(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic recovered: %v", r)
				stack := string(debug.Stack())
				logger.L().ErrorContext(ctx, "goroutine panic", "error", err, "stack", stack)
			}
		}()
		fn()
	}()
}
