// Package message defines how vertex values travel between supersteps.
package message

// Message is a value sent from one vertex to another. Type lets a compute
// function tell apart the kinds of messages it receives.
type Message interface {
	Type() string
}

// Queue buffers the messages addressed to a single vertex.
type Queue interface {
	Close() error
	Enqueue(msg Message) error

	// PendingMessages reports whether the queue holds undelivered messages.
	PendingMessages() bool

	// DiscardMessages drops everything in the queue.
	DiscardMessages() error

	Messages() Iterator
}

// Iterator walks the messages of a queue.
type Iterator interface {
	// Next advances the iterator. It returns false once the messages are
	// exhausted or an error occurred.
	Next() bool
	Message() Message
	Error() error
}

// QueueFactory creates an empty queue for a new vertex.
type QueueFactory func() Queue
