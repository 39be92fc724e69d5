package scheduler

import "time"

// JobStatus represents the state of a job's most recent run.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusQueued    JobStatus = "queued"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a recurring job known to the scheduler.
type Job struct {
	Name      string
	Spec      string
	Status    JobStatus
	NextRun   time.Time
	LastRun   time.Time
	LastError string
	Runs      int
	Failures  int

	schedule Schedule
}
