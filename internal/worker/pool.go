package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketfront-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task represents a unit of work for the worker pool.
// A Process error makes the pool retry the task.
type Task interface {
	Name() string
	Process(ctx context.Context) error
}

// TaskFunc adapts a named function to the Task interface.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

func (t TaskFunc) Name() string                      { return t.TaskName }
func (t TaskFunc) Process(ctx context.Context) error { return t.Fn(ctx) }

// Options configures a WorkerPool.
type Options struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	// RetryDelay is the wait before the first retry; it doubles on each attempt.
	RetryDelay time.Duration
	Logger     *log.Logger
}

// WorkerPool manages a pool of worker goroutines
// and a queue of tasks to process
type WorkerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	opts   Options
	logger *log.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	tasks   chan Task

	deadLetterMu sync.Mutex
	deadLetter   []Task
}

// PoolStats holds monitoring information about the worker pool
type PoolStats struct {
	ActiveWorkers int
	QueueLength   int
	DeadLetters   int
}

// NewWorkerPool creates a new WorkerPool with the given number of workers and defaults for the rest.
func NewWorkerPool(workers int) *WorkerPool {
	return NewWorkerPoolWithOptions(Options{Workers: workers})
}

// NewWorkerPoolWithOptions creates a new WorkerPool.
func NewWorkerPoolWithOptions(opts Options) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		logger: logger,
		tasks:  make(chan Task, opts.QueueSize),
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

// Stop lets workers drain queued tasks, then waits for them to exit.
// In-flight retries are abandoned once ctx is done.
func (p *WorkerPool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
}

// Submit adds a task to the queue. It returns false if the queue is full.
func (p *WorkerPool) Submit(task Task) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false, ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		return true, nil
	default:
		return false, nil // backpressure: queue is full
	}
}

// workerLoop is the main loop for each worker goroutine
func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.processWithRetry(task)
	}
}

// processWithRetry processes a task, retrying with backoff up to MaxRetries,
// then moves it to the dead letter list.
func (p *WorkerPool) processWithRetry(task Task) {
	delay := p.opts.RetryDelay
	var err error
	for attempt := 1; attempt <= p.opts.MaxRetries; attempt++ {
		if err = task.Process(p.ctx); err == nil {
			return
		}
		entry := p.logger.WithFields(log.Fields{"task": task.Name(), "attempt": attempt}).WithError(err)
		if attempt == p.opts.MaxRetries {
			break
		}
		entry.Warn("task failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
	}

	p.logger.WithField("task", task.Name()).WithError(err).Error("task exhausted retries")
	metrics.TasksFailed.Inc()
	p.deadLetterMu.Lock()
	p.deadLetter = append(p.deadLetter, task)
	p.deadLetterMu.Unlock()
}

// DeadLetterCount returns the number of tasks in the dead letter list
func (p *WorkerPool) DeadLetterCount() int {
	p.deadLetterMu.Lock()
	defer p.deadLetterMu.Unlock()
	return len(p.deadLetter)
}

// Workers returns the number of worker goroutines
func (p *WorkerPool) Workers() int {
	return p.opts.Workers
}

// Stats returns current statistics about the worker pool
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ActiveWorkers: p.opts.Workers,
		QueueLength:   len(p.tasks),
		DeadLetters:   p.DeadLetterCount(),
	}
}
