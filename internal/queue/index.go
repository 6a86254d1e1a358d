package queue

import "container/heap"

// idItem pairs a message id with the score it is ordered by: priority
// for pending, next-visibility time for scheduled, lease expiry for
// inflight. Lower score pops first in all three.
type idItem struct {
	id    string
	score float64
	index int
}

// idHeap is a min-heap over message ids, reused for a queueState's
// pending, scheduled, and inflight indexes — the three differ only in
// what score they sort by, never in shape.
type idHeap struct {
	items []*idItem
}

func newIDHeap() *idHeap {
	h := &idHeap{}
	heap.Init(h)
	return h
}

func (h *idHeap) Len() int           { return len(h.items) }
func (h *idHeap) Less(i, j int) bool { return h.items[i].score < h.items[j].score }
func (h *idHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}
func (h *idHeap) Push(x interface{}) {
	item := x.(*idItem)
	item.index = len(h.items)
	h.items = append(h.items, item)
}
func (h *idHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

func (h *idHeap) PushItem(id string, score float64) {
	heap.Push(h, &idItem{id: id, score: score})
}

func (h *idHeap) Peek() (id string, score float64, ok bool) {
	if len(h.items) == 0 {
		return "", 0, false
	}
	top := h.items[0]
	return top.id, top.score, true
}

func (h *idHeap) PopItem() (id string, score float64, ok bool) {
	if len(h.items) == 0 {
		return "", 0, false
	}
	item := heap.Pop(h).(*idItem)
	return item.id, item.score, true
}

func (h *idHeap) Size() int { return len(h.items) }

// waiterQueue is a FIFO of parked long-poll consumers, dequeued in
// arrival order as messages become available.
type waiterQueue struct {
	items []*waiter
}

func newWaiterQueue() *waiterQueue {
	return &waiterQueue{}
}

func (q *waiterQueue) Enqueue(w *waiter) {
	q.items = append(q.items, w)
}

func (q *waiterQueue) Dequeue() (*waiter, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	w := q.items[0]
	q.items = q.items[1:]
	return w, true
}

func (q *waiterQueue) Len() int { return len(q.items) }
