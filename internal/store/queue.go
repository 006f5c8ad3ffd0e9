package store

import (
	"sync"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/queryir"
)

// notificationKind distinguishes observer kinds.
type notificationKind int

const (
	notifyNode notificationKind = iota + 1
	notifyQuery
)

func (k notificationKind) String() string {
	if k == notifyQuery {
		return "query"
	}
	return "node"
}

// notification is one pending observer callback with the state captured
// when it was enqueued.
type notification struct {
	kind     notificationKind
	handle   Handle
	quads    []quad.Quad
	bindings []queryir.Binding
}

// notificationQueue is a FIFO queue of pending notifications.
//
// The queue is unbounded so that callbacks may cause arbitrarily many
// further notifications without blocking.
type notificationQueue struct {
	mu     sync.Mutex
	items  []notification
	closed bool
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{
		items: make([]notification, 0, 16),
	}
}

// Enqueue adds a notification to the back of the queue.
// Returns false if the queue is closed.
func (q *notificationQueue) Enqueue(n notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, n)
	return true
}

// TryDequeue removes and returns the front notification without blocking.
func (q *notificationQueue) TryDequeue() (notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return notification{}, false
	}

	n := q.items[0]
	// Nil out the slot so the captured quads and bindings can be collected.
	q.items[0] = notification{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return n, true
}

// Len returns the current queue length.
func (q *notificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close drops pending notifications and rejects new ones.
func (q *notificationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
}
