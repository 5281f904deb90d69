package queue

import "context"

// Header names attached to every outcome message.
const (
	HeaderContentType = "content-type"
	HeaderCategory    = "category"
)

// Msg is a single message handed to a QueuePublisher. Key drives
// partitioning on backends that support it.
type Msg struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// QueuePublisher delivers messages to a queue backend.
type QueuePublisher interface {
	// Publish blocks until the backend confirms delivery, rejects the
	// message, or ctx is done.
	Publish(ctx context.Context, message Msg) error

	// Close flushes in-flight messages and releases resources. It must be
	// called exactly once; canceling ctx may drop unflushed messages.
	Close(ctx context.Context)
}
