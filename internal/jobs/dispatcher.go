package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/verityops/compliance-backend/internal/platform/envutil"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

// TaskFunc is one unit of background work. The context is the dispatcher's
// run context, cancelled on shutdown.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	fn   TaskFunc
}

// Dispatcher runs enqueued document pipelines on a fixed pool of worker
// goroutines. Tasks are best effort: nothing is persisted, a crashed process
// loses its queue and documents stay in the processing state until they are
// reprocessed.
type Dispatcher struct {
	log   *logger.Logger
	queue chan task
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	queueSize := envutil.GetEnvAsInt("JOB_QUEUE_SIZE", 256, log)
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		log:   log.With("component", "JobDispatcher"),
		queue: make(chan task, queueSize),
	}
}

// Start launches the worker pool. Concurrency comes from WORKER_CONCURRENCY
// (default 4).
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	concurrency := envutil.GetEnvAsInt("WORKER_CONCURRENCY", 4, d.log)
	if concurrency < 1 {
		concurrency = 1
	}
	d.log.Info("Starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		d.wg.Add(1)
		go d.runLoop(ctx, workerID)
	}
}

// Enqueue queues a task without blocking. A full queue rejects the task so
// an upload request never hangs on background capacity.
func (d *Dispatcher) Enqueue(name string, fn TaskFunc) error {
	// The send happens under the same lock that guards close(d.queue) in
	// Shutdown; the default branch keeps it non-blocking, so holding the
	// lock across the select is safe and rules out a send on a closed
	// channel.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("dispatcher is shut down")
	}

	select {
	case d.queue <- task{name: name, fn: fn}:
		d.log.Debug("Task enqueued", "task", name)
		return nil
	default:
		return fmt.Errorf("job queue full, rejecting task %s", name)
	}
}

// Shutdown stops intake and waits for in-flight tasks to drain.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("Job dispatcher drained")
}

func (d *Dispatcher) runLoop(ctx context.Context, workerID int) {
	defer d.wg.Done()

	for t := range d.queue {
		if ctx.Err() != nil {
			d.log.Warn("Dropping task, dispatcher context cancelled",
				"worker_id", workerID,
				"task", t.name,
			)
			continue
		}
		d.run(ctx, workerID, t)
	}
	d.log.Info("Worker loop stopped", "worker_id", workerID)
}

func (d *Dispatcher) run(ctx context.Context, workerID int, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Task panic",
				"worker_id", workerID,
				"task", t.name,
				"panic", r,
			)
		}
	}()

	d.log.Info("Task started", "worker_id", workerID, "task", t.name)
	if err := t.fn(ctx); err != nil {
		// Pipelines mark their own document failed; this is the safety net log.
		d.log.Error("Task failed",
			"worker_id", workerID,
			"task", t.name,
			"error", err.Error(),
		)
		return
	}
	d.log.Info("Task completed", "worker_id", workerID, "task", t.name)
}
