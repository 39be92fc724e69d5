package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketfront-go/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineSubmitter runs tasks synchronously, or rejects them when full is set.
type inlineSubmitter struct {
	mu    sync.Mutex
	full  bool
	err   error
	names []string
}

func (s *inlineSubmitter) Submit(task worker.Task) (bool, error) {
	s.mu.Lock()
	if s.err != nil || s.full {
		s.mu.Unlock()
		return false, s.err
	}
	s.names = append(s.names, task.Name())
	s.mu.Unlock()
	_ = task.Process(context.Background())
	return true, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestScheduler(pool Submitter) (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewScheduler(pool, nil)
	s.now = clock.Now
	return s, clock
}

func TestScheduler_AddJob(t *testing.T) {
	s, clock := newTestScheduler(&inlineSubmitter{})
	noop := func(context.Context, *Job) error { return nil }

	require.NoError(t, s.AddJob("a", "@every 1m", noop))
	assert.Error(t, s.AddJob("a", "@every 1m", noop), "duplicate name")
	assert.Error(t, s.AddJob("b", "not a schedule", noop))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobStatusIdle, jobs[0].Status)
	assert.Equal(t, clock.now.Add(time.Minute), jobs[0].NextRun)
}

func TestScheduler_DispatchDue(t *testing.T) {
	pool := &inlineSubmitter{}
	s, clock := newTestScheduler(pool)

	runs := 0
	require.NoError(t, s.AddJob("cleanup", "@every 1m", func(ctx context.Context, job *Job) error {
		runs++
		assert.Equal(t, "cleanup", job.Name)
		return nil
	}))

	s.dispatchDue()
	assert.Equal(t, 0, runs, "not due yet")

	clock.now = clock.now.Add(time.Minute)
	s.dispatchDue()
	assert.Equal(t, 1, runs)

	job := s.Jobs()[0]
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Runs)
	assert.Equal(t, clock.now, job.LastRun)
	assert.Equal(t, clock.now.Add(time.Minute), job.NextRun)
}

func TestScheduler_Backpressure(t *testing.T) {
	pool := &inlineSubmitter{full: true}
	s, clock := newTestScheduler(pool)
	require.NoError(t, s.AddJob("cleanup", "@every 1m", func(context.Context, *Job) error { return nil }))

	clock.now = clock.now.Add(time.Minute)
	s.dispatchDue()

	job := s.Jobs()[0]
	assert.Equal(t, JobStatusIdle, job.Status)
	assert.Equal(t, clock.now.Add(retryDelay), job.NextRun)

	pool.err = worker.ErrPoolStopped
	clock.now = job.NextRun
	s.dispatchDue()
	assert.True(t, s.Jobs()[0].NextRun.IsZero(), "a stopped pool parks the job")
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s, _ := newTestScheduler(&inlineSubmitter{})
	boom := errors.New("database is locked")
	require.NoError(t, s.AddJob("flaky", "@every 1m", func(context.Context, *Job) error { return boom }))

	err := s.RunNow(context.Background(), "flaky")
	assert.ErrorIs(t, err, boom)

	job := s.Jobs()[0]
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Failures)
	assert.Equal(t, "database is locked", job.LastError)

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestScheduler_RunAll(t *testing.T) {
	s, _ := newTestScheduler(&inlineSubmitter{})
	var order []string
	for _, name := range []string{"b", "a", "c"} {
		name := name
		require.NoError(t, s.AddJob(name, "@every 1m", func(context.Context, *Job) error {
			order = append(order, name)
			if name == "b" {
				return errors.New("b failed")
			}
			return nil
		}))
	}

	err := s.RunAll(context.Background())
	assert.ErrorContains(t, err, "b failed")
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduler_StartStopWithPool(t *testing.T) {
	pool := worker.NewWorkerPool(1)
	pool.Start()
	defer pool.Stop(context.Background())

	s := NewScheduler(pool, nil)
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func(context.Context, *Job) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job was not dispatched")
	}
}
