package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/bus"
)

// Worker dispatches one item and returns its outcome. Supplied by C5; the
// queue itself never knows how an injection is actually fulfilled.
type Worker func(ctx context.Context, item *Item) Result

// Stats mirrors spec §4.3's getStats() → {sessionKey, queueDepth, isProcessing}.
type Stats struct {
	SessionKey   string
	QueueDepth   int
	IsProcessing bool
}

// SessionQueue is one session's priority FIFO: at most one active item,
// an ordered backlog, and a cancellation token for whichever item is
// currently dispatching.
type SessionQueue struct {
	session string
	worker  Worker
	bus     bus.EventPublisher

	mu     sync.Mutex
	items  itemHeap
	active *Item
	idleAt time.Time
	closed bool
	wake   chan struct{}
}

func newSessionQueue(session string, worker Worker, publisher bus.EventPublisher) *SessionQueue {
	q := &SessionQueue{
		session: session,
		worker:  worker,
		bus:     publisher,
		idleAt:  time.Now(),
		wake:    make(chan struct{}, 1),
	}
	heap.Init(&q.items)
	go q.run()
	return q
}

// Enqueue assigns an inject-id, pushes the item, emits "enqueue", and
// returns a Future resolved once the worker finishes (or cancels) it.
func (q *SessionQueue) Enqueue(ctx context.Context, message string, priority int, source interface{}) (*Item, *Future) {
	item := newItem(ctx, q.session, message, priority, source)

	q.mu.Lock()
	heap.Push(&q.items, item)
	q.idleAt = time.Time{}
	q.mu.Unlock()

	q.emit("enqueue", item)
	q.nudge()

	return item, &Future{done: item.done}
}

func (q *SessionQueue) nudge() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the single worker loop for this session: it pops the
// highest-priority, earliest-sequence item, dispatches it to completion
// (or cancellation), then moves to the next. The previously-active item
// always finishes before the next one starts (spec §4.3 ordering
// guarantee).
func (q *SessionQueue) run() {
	for {
		item, ok := q.popNext()
		if !ok {
			<-q.wake
			if q.isClosed() {
				return
			}
			continue
		}

		q.emit("dequeue", item)

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			item.resolve(Result{Err: context.Canceled})
			return
		}
		q.active = item
		q.mu.Unlock()

		q.emit("start", item)
		result := q.worker(item.Context(), item)

		q.mu.Lock()
		q.active = nil
		q.idleAt = time.Now()
		q.mu.Unlock()

		switch {
		case item.Cancelled():
			q.emit("cancel", item)
		case result.Err != nil:
			q.emit("error", item)
		default:
			q.emit("complete", item)
		}
		item.resolve(result)
	}
}

func (q *SessionQueue) popNext() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*Item), true
}

func (q *SessionQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// CancelActive signals the active item's token; the worker propagates
// cancellation to the provider client and the future rejects with
// context.Canceled.
func (q *SessionQueue) CancelActive() bool {
	q.mu.Lock()
	active := q.active
	q.mu.Unlock()
	if active == nil {
		return false
	}
	active.cancel()
	return true
}

// CancelQueued rejects every non-active item with context.Canceled and
// returns the count cancelled.
func (q *SessionQueue) CancelQueued() int {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	heap.Init(&q.items)
	q.mu.Unlock()

	for _, item := range pending {
		item.cancel()
		item.resolve(Result{Err: context.Canceled})
		q.emit("cancel", item)
	}
	return len(pending)
}

// CancelAll cancels both the active item and every queued item.
func (q *SessionQueue) CancelAll() int {
	cancelled := q.CancelQueued()
	if q.CancelActive() {
		cancelled++
	}
	return cancelled
}

// Stats reports the queue's current depth and processing state.
func (q *SessionQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		SessionKey:   q.session,
		QueueDepth:   q.items.Len(),
		IsProcessing: q.active != nil,
	}
}

// idleSince reports how long this queue has had no active or queued work.
func (q *SessionQueue) idleSince() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil || q.items.Len() > 0 || q.idleAt.IsZero() {
		return time.Time{}, false
	}
	return q.idleAt, true
}

func (q *SessionQueue) shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.nudge()
}

func (q *SessionQueue) emit(event string, item *Item) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(bus.Event{Name: event, Payload: map[string]interface{}{
		"injectId": item.InjectID,
		"session":  item.Session,
	}})
}
