package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// wakeItem is a single pending wake deadline.
type wakeItem struct {
	readyAt time.Time
	index   int
}

// wakeTimer coalesces every pending/scheduled/inflight deadline for one
// queue into a single blocking wait: runWaker parks on WaitContext and
// is released the instant the soonest-armed deadline passes, regardless
// of how many deadlines are outstanding. It carries no payload — the
// heaps in queueState remain the source of truth for what actually
// became ready; this is purely a timer multiplexer.
type wakeTimer struct {
	mu     sync.Mutex
	items  []*wakeItem
	notify chan struct{}
}

func newWakeTimer() *wakeTimer {
	return &wakeTimer{notify: make(chan struct{}, 1)}
}

func (w *wakeTimer) Len() int           { return len(w.items) }
func (w *wakeTimer) Less(i, j int) bool { return w.items[i].readyAt.Before(w.items[j].readyAt) }
func (w *wakeTimer) Swap(i, j int) {
	w.items[i], w.items[j] = w.items[j], w.items[i]
	w.items[i].index = i
	w.items[j].index = j
}
func (w *wakeTimer) Push(x interface{}) {
	item := x.(*wakeItem)
	item.index = len(w.items)
	w.items = append(w.items, item)
}
func (w *wakeTimer) Pop() interface{} {
	old := w.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	w.items = old[:n-1]
	return item
}

// Arm schedules a wake after d. Negative durations fire immediately.
func (w *wakeTimer) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}
	w.mu.Lock()
	heap.Push(w, &wakeItem{readyAt: time.Now().Add(d)})
	soonest := w.items[0].index == 0
	w.mu.Unlock()
	if soonest {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// WaitContext blocks until the soonest-armed deadline passes or ctx is
// done.
func (w *wakeTimer) WaitContext(ctx context.Context) error {
	for {
		w.mu.Lock()
		if len(w.items) == 0 {
			w.mu.Unlock()
			select {
			case <-w.notify:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		d := time.Until(w.items[0].readyAt)
		if d <= 0 {
			heap.Pop(w)
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-w.notify:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
