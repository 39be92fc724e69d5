package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketfront-go/internal/worker"

	log "github.com/sirupsen/logrus"
)

// Submitter queues tasks for execution.
type Submitter interface {
	Submit(task worker.Task) (bool, error)
}

// retryDelay is how long a job waits when the worker queue was full.
const retryDelay = time.Second

// Scheduler dispatches recurring jobs to a worker pool.
type Scheduler struct {
	pool     Submitter
	registry *JobHandlerRegistry
	logger   *log.Logger
	now      func() time.Time

	jobMu sync.Mutex
	jobs  map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wakeup chan struct{}
}

// NewScheduler creates a new Scheduler that submits due jobs to pool.
func NewScheduler(pool Submitter, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pool:     pool,
		registry: NewJobHandlerRegistry(),
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
		wakeup:   make(chan struct{}, 1),
	}
}

// AddJob registers a recurring job. spec is parsed by ParseSchedule.
func (s *Scheduler) AddJob(name, spec string, handler JobHandler) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for job %s: %w", name, err)
	}

	s.jobMu.Lock()
	if _, exists := s.jobs[name]; exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = &Job{
		Name:     name,
		Spec:     spec,
		Status:   JobStatusIdle,
		NextRun:  sched.Next(s.now()),
		schedule: sched,
	}
	s.jobMu.Unlock()

	s.registry.RegisterHandler(name, handler)
	s.signalWakeup()
	return nil
}

// Jobs returns a snapshot of all jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunNow runs the named job synchronously, bypassing the pool.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.run(ctx, name)
}

// RunAll runs every job synchronously in name order and returns the first error.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var firstErr error
	for _, name := range s.registry.Names() {
		if err := s.run(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start begins the scheduling loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.schedulingLoop()
}

// Stop gracefully shuts down the scheduler. Jobs already queued on the pool
// are not affected.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) signalWakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// schedulingLoop sleeps until the next job is due and dispatches it.
func (s *Scheduler) schedulingLoop() {
	defer s.wg.Done()
	for {
		next := s.findNextJobTime()
		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatchDue()
		case <-s.wakeup:
			timer.Stop()
		}
	}
}

// findNextJobTime finds the soonest NextRun among idle jobs
func (s *Scheduler) findNextJobTime() time.Time {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	next := s.now().Add(time.Hour)
	for _, job := range s.jobs {
		if job.Status != JobStatusQueued && !job.NextRun.IsZero() && job.NextRun.Before(next) {
			next = job.NextRun
		}
	}
	return next
}

// dispatchDue submits every job whose NextRun has passed.
func (s *Scheduler) dispatchDue() {
	now := s.now()

	type dispatch struct {
		job  *Job
		prev JobStatus
	}
	s.jobMu.Lock()
	var due []dispatch
	for _, job := range s.jobs {
		if job.Status != JobStatusQueued && !job.NextRun.IsZero() && !job.NextRun.After(now) {
			due = append(due, dispatch{job: job, prev: job.Status})
			job.Status = JobStatusQueued
			job.NextRun = job.schedule.Next(now)
		}
	}
	s.jobMu.Unlock()

	for _, d := range due {
		ok, err := s.pool.Submit(&JobTask{name: d.job.Name, scheduler: s})
		if ok {
			continue
		}

		s.jobMu.Lock()
		d.job.Status = d.prev
		if err != nil {
			d.job.NextRun = time.Time{}
		} else {
			d.job.NextRun = now.Add(retryDelay)
		}
		s.jobMu.Unlock()

		if err != nil {
			s.logger.WithField("job", d.job.Name).WithError(err).Warn("job not dispatched")
		} else {
			s.logger.WithField("job", d.job.Name).Warn("worker queue full, job delayed")
		}
	}
}

// run executes one attempt of a job and records its outcome.
func (s *Scheduler) run(ctx context.Context, name string) error {
	handler, err := s.registry.GetHandler(name)
	if err != nil {
		return err
	}

	s.jobMu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.jobMu.Unlock()
		return fmt.Errorf("unknown job: %s", name)
	}
	snapshot := *job
	s.jobMu.Unlock()

	start := s.now()
	runErr := handler(ctx, &snapshot)

	s.jobMu.Lock()
	job.LastRun = start
	job.Runs++
	if runErr != nil {
		job.Status = JobStatusFailed
		job.LastError = runErr.Error()
		job.Failures++
	} else {
		job.Status = JobStatusCompleted
		job.LastError = ""
	}
	s.jobMu.Unlock()
	s.signalWakeup()

	entry := s.logger.WithFields(log.Fields{"job": name, "duration": time.Since(start)})
	if runErr != nil {
		entry.WithError(runErr).Warn("job failed")
		return fmt.Errorf("job %s failed: %w", name, runErr)
	}
	entry.Debug("job completed")
	return nil
}
