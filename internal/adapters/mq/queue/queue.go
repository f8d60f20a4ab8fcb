// Package queue defines the contract for enqueuing and consuming analysis tasks.
//
// The in-memory implementation is a bounded channel; a full queue rejects new
// work instead of blocking the caller.
package queue

import (
	"context"
	"sync"

	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Task represents the payload type flowing through the queue.
type Task = model.Task

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task to the queue.
	// Returns false if the queue is full or closed and the task was not enqueued.
	Enqueue(ctx context.Context, t Task) bool
	// Dequeue returns a channel that will receive tasks as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Task
	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int
	// Cap returns the maximum number of queued tasks.
	Cap() int
	// Close gracefully shuts down the queue.
	Close() error
	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueue(0, q.capacity)
	return q
}

// Enqueue adds a task to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordEnqueue(false)
		metrics.RecordError("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordEnqueue(false)
		metrics.RecordError("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.tasks <- t:
		metrics.RecordEnqueue(true)
		metrics.UpdateQueue(len(q.tasks), q.capacity)
		return true
	default:
		metrics.RecordEnqueue(false)
		metrics.RecordError("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-q.tasks:
				if !ok {
					return
				}
				select {
				case out <- t:
					metrics.RecordDequeue()
					metrics.UpdateQueue(len(q.tasks), q.capacity)
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.tasks)
	metrics.UpdateQueue(size, q.capacity)
	return size
}

// Cap returns the maximum number of queued tasks.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue. Tasks already queued are still
// delivered to consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
