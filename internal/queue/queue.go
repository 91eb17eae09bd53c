// Package queue decouples experiment persistence from the request path.
// Completed experiments are enqueued as archival tasks and a background
// worker drains them into the store. The in-memory queue serves a single
// instance; SQS carries tasks across instances.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
)

// DefaultCapacity bounds the in-memory queue.
const DefaultCapacity = 1024

// ErrFull is returned when the in-memory queue cannot accept more tasks.
var ErrFull = errors.New("archival queue full")

// Task carries one completed experiment to the archival worker.
type Task struct {
	Experiment *domain.Experiment `json:"experiment"`
	EnqueuedAt time.Time          `json:"enqueued_at"`

	// receiptHandle is set on tasks received from SQS and consumed by Ack.
	receiptHandle string
}

// Queue is the transport between the request path and the worker.
// Dequeue blocks until at least one task is available or ctx is done.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context, max int) ([]Task, error)
	Ack(ctx context.Context, task Task) error
}

// InMemory is a channel-backed queue. Enqueue never blocks; a full queue
// is an error so the caller can fall back to saving inline.
type InMemory struct {
	ch chan Task
}

func NewInMemory(capacity int) *InMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemory{ch: make(chan Task, capacity)}
}

func (q *InMemory) Enqueue(ctx context.Context, task Task) error {
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrFull
	}
}

func (q *InMemory) Dequeue(ctx context.Context, max int) ([]Task, error) {
	if max <= 0 {
		max = 1
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task := <-q.ch:
		tasks := []Task{task}
		for len(tasks) < max {
			select {
			case t := <-q.ch:
				tasks = append(tasks, t)
			default:
				return tasks, nil
			}
		}
		return tasks, nil
	}
}

func (q *InMemory) Ack(ctx context.Context, task Task) error {
	return nil
}

// Len reports queued task count, for tests and readiness reporting.
func (q *InMemory) Len() int {
	return len(q.ch)
}
