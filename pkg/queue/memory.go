package queue

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
// Producers treat the queue as fire-and-forget and drop on full rather
// than block.
type ErrQueueFull struct{}

func (e *ErrQueueFull) Error() string {
	return "queue is full"
}

// MemoryQueue implements a bounded in-memory queue.
type MemoryQueue struct {
	ch chan interface{}
}

// NewMemoryQueue creates a new queue with the given capacity.
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan interface{}, size),
	}
}

// Enqueue adds an item to the end of the queue without blocking.
func (q *MemoryQueue) Enqueue(item interface{}) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return &ErrQueueFull{}
	}
}

// ReadAllMessages reads all pending messages in the queue.
func (q *MemoryQueue) ReadAllMessages() ([]interface{}, error) {
	var messages []interface{}
	for {
		select {
		case item := <-q.ch:
			messages = append(messages, item)
		default:
			return messages, nil
		}
	}
}

// Size returns the current size of the queue.
func (q *MemoryQueue) Size() int {
	return len(q.ch)
}
