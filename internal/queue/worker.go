package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
)

// Saver is the slice of the store the worker needs.
type Saver interface {
	SaveExperiment(ctx context.Context, exp *domain.Experiment) error
}

// Publisher is what request handlers use to hand off a completed
// experiment for persistence.
type Publisher interface {
	Publish(ctx context.Context, exp *domain.Experiment) error
}

// NewPublisher wraps a queue as a publisher.
func NewPublisher(q Queue) Publisher {
	return queuePublisher{q: q}
}

type queuePublisher struct {
	q Queue
}

func (p queuePublisher) Publish(ctx context.Context, exp *domain.Experiment) error {
	return p.q.Enqueue(ctx, Task{Experiment: exp, EnqueuedAt: time.Now().UTC()})
}

// NewDirect returns a publisher that saves inline, for deployments
// without an archival queue.
func NewDirect(s Saver) Publisher {
	return directPublisher{s: s}
}

type directPublisher struct {
	s Saver
}

func (p directPublisher) Publish(ctx context.Context, exp *domain.Experiment) error {
	return p.s.SaveExperiment(ctx, exp)
}

// Worker drains the queue into the store until its context is canceled.
type Worker struct {
	queue Queue
	saver Saver
	batch int
}

func NewWorker(q Queue, s Saver, batch int) *Worker {
	if batch <= 0 {
		batch = 10
	}
	return &Worker{queue: q, saver: s, batch: batch}
}

// Run loops on Dequeue. Tasks that fail to save stay unacked so a
// redelivering backend can retry them; the in-memory queue drops them
// after the error is logged.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("archival worker started", "batch", w.batch)

	for {
		tasks, err := w.queue.Dequeue(ctx, w.batch)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("archival worker stopped")
				return
			}
			slog.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				slog.Info("archival worker stopped")
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, task := range tasks {
			if task.Experiment == nil {
				continue
			}
			if err := w.saver.SaveExperiment(ctx, task.Experiment); err != nil {
				slog.Error("archive experiment failed",
					"experiment_id", task.Experiment.ID,
					"error", err)
				continue
			}
			if err := w.queue.Ack(ctx, task); err != nil {
				slog.Warn("ack failed",
					"experiment_id", task.Experiment.ID,
					"error", err)
			}
		}
	}
}
