package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job *Job) error

// JobHandlerRegistry maintains a map of job name to handler functions
type JobHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
}

// NewJobHandlerRegistry creates a new job handler registry
func NewJobHandlerRegistry() *JobHandlerRegistry {
	return &JobHandlerRegistry{
		handlers: make(map[string]JobHandler),
	}
}

// RegisterHandler registers a handler function for a job name
func (r *JobHandlerRegistry) RegisterHandler(name string, handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// GetHandler returns the handler function for a job name
func (r *JobHandlerRegistry) GetHandler(name string) (JobHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job: %s", name)
	}
	return handler, nil
}

// Names returns the registered job names in sorted order.
func (r *JobHandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobTask runs one job on the worker pool.
type JobTask struct {
	name      string
	scheduler *Scheduler
}

// Name implements worker.Task.
func (t *JobTask) Name() string {
	return t.name
}

// Process implements worker.Task. Each attempt is recorded on the job.
func (t *JobTask) Process(ctx context.Context) error {
	return t.scheduler.run(ctx, t.name)
}
