package chat

import "sync"

// Broadcast is one pending chat line. A nil Origin means the line is delivered
// to every session; otherwise the origin is skipped.
type Broadcast struct {
	Message string
	Origin  *Session
}

// BroadcastQueue is a mutex-guarded FIFO of pending broadcasts. Handlers
// produce, the server tick loop consumes.
type BroadcastQueue struct {
	mu    sync.Mutex
	items []Broadcast
}

func NewBroadcastQueue() *BroadcastQueue {
	return &BroadcastQueue{}
}

// Enqueue appends a broadcast.
func (q *BroadcastQueue) Enqueue(message string, origin *Session) {
	q.mu.Lock()
	q.items = append(q.items, Broadcast{Message: message, Origin: origin})
	q.mu.Unlock()
}

// DrainAll detaches every queued broadcast in enqueue order and leaves the
// queue empty. Delivery happens after the lock is released.
func (q *BroadcastQueue) DrainAll() []Broadcast {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

func (q *BroadcastQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
