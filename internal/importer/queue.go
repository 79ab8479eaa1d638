package importer

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("import queue is shut down")

// Runner processes one import task end to end. Satisfied by *Controller.
type Runner interface {
	Run(ctx context.Context, task Task) error
}

// Queue is a fixed-size worker pool dispatching import tasks. Each worker
// owns its own channel and tasks are routed by a hash of the job ID, so
// two tasks for the same job can never run concurrently; within a worker,
// tasks run in enqueue order.
type Queue struct {
	runner  Runner
	log     *slog.Logger
	timeout time.Duration
	chans   []chan Task
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
	// in-flight Enqueue sends; Shutdown waits on it before closing the
	// channels so a blocked send never lands on a closed channel
	sending sync.WaitGroup
}

// Option configures a Queue.
type Option func(*queueConfig)

type queueConfig struct {
	workers int
	size    int
	timeout time.Duration
}

// WithWorkers sets the number of workers (default 4).
func WithWorkers(n int) Option {
	return func(c *queueConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the per-worker task buffer (default 64).
func WithQueueSize(n int) Option {
	return func(c *queueConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithJobTimeout bounds the processing time of a single task (default 10m).
func WithJobTimeout(d time.Duration) Option {
	return func(c *queueConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewQueue creates the pool and starts its workers.
func NewQueue(runner Runner, log *slog.Logger, opts ...Option) *Queue {
	cfg := queueConfig{workers: 4, size: 64, timeout: 10 * time.Minute}
	for _, o := range opts {
		o(&cfg)
	}

	q := &Queue{
		runner:  runner,
		log:     log,
		timeout: cfg.timeout,
		chans:   make([]chan Task, cfg.workers),
	}
	for i := range q.chans {
		q.chans[i] = make(chan Task, cfg.size)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i, ch := range q.chans {
			q.wg.Add(1)
			go func(workerID int, ch <-chan Task) {
				defer q.wg.Done()
				q.log.Info("import worker started", "worker_id", workerID)

				for task := range ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.runner.Run(ctx, task)
					cancel()

					if err != nil {
						q.log.Error("import task failed",
							"worker_id", workerID, "job_id", task.JobID, "error", err)
					}
				}

				q.log.Info("import worker stopped", "worker_id", workerID)
			}(i+1, ch)
		}
	})
}

// Enqueue routes a task to its job's worker. Blocks when that worker's
// buffer is full, applying backpressure to the caller; other workers'
// partitions stay unaffected.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	ch := q.chans[q.partition(task)]
	if len(ch) == cap(ch) {
		q.log.Warn("worker queue full, applying backpressure", "job_id", task.JobID)
	}
	ch <- task

	q.log.Info("import job enqueued", "job_id", task.JobID)
	return nil
}

// partition maps a task to a worker index by FNV-1a hash of the job ID.
func (q *Queue) partition(task Task) int {
	h := fnv.New32a()
	h.Write(task.JobID[:])
	return int(h.Sum32() % uint32(len(q.chans)))
}

// Shutdown stops intake and drains in-flight tasks, waiting up to the
// context deadline.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Workers are still draining, so pending sends finish on their own.
	q.sending.Wait()
	for _, ch := range q.chans {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		q.log.Warn("queue shutdown interrupted by context")
	case <-done:
		q.log.Info("queue drained, shutdown complete")
	}
}
