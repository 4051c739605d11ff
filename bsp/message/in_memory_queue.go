package message

import "sync"

var _ Queue = (*inMemoryQueue)(nil)

// inMemoryQueue delivers messages in the order they were enqueued. Enqueue
// is safe for concurrent use; the returned iterator is not.
type inMemoryQueue struct {
	mu         sync.Mutex
	msgs       []Message
	head       int
	latchedMsg Message
}

// NewInMemoryQueue returns an unbounded FIFO queue.
func NewInMemoryQueue() Queue {
	return new(inMemoryQueue)
}

func (q *inMemoryQueue) Enqueue(msg Message) error {
	q.mu.Lock()
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()
	return nil
}

func (q *inMemoryQueue) PendingMessages() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head < len(q.msgs)
}

func (q *inMemoryQueue) DiscardMessages() error {
	q.mu.Lock()
	q.msgs = q.msgs[:0]
	q.head = 0
	q.latchedMsg = nil
	q.mu.Unlock()
	return nil
}

func (*inMemoryQueue) Close() error { return nil }

func (q *inMemoryQueue) Messages() Iterator {
	return q
}

func (q *inMemoryQueue) Next() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.msgs) {
		return false
	}

	q.latchedMsg = q.msgs[q.head]
	q.msgs[q.head] = nil
	q.head++
	return true
}

func (q *inMemoryQueue) Message() Message {
	q.mu.Lock()
	msg := q.latchedMsg
	q.mu.Unlock()
	return msg
}

func (*inMemoryQueue) Error() error { return nil }
