package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketfront-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Housekeeping job names.
const (
	JobCleanupSharedItems = "cleanup_shared_items"
	JobCleanupTokens      = "cleanup_expired_tokens"
	JobCleanupSessions    = "cleanup_sessions"
)

// HousekeepingStore is the storage housekeeping prunes.
type HousekeepingStore interface {
	CleanupSharedItems(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
	DeleteScope(ctx context.Context, scope string) error
}

// SessionCleaner removes expired sessions and reports their IDs.
type SessionCleaner interface {
	Cleanup(ctx context.Context) ([]string, error)
}

// ScopeForgetter drops in-memory state kept for a browser scope.
type ScopeForgetter interface {
	Forget(scope string)
}

// Housekeeping prunes login values that were never redeemed, expired tokens
// and the data of expired browser sessions.
type Housekeeping struct {
	Store    HousekeepingStore
	Sessions SessionCleaner
	States   ScopeForgetter
	// StateTTL is how long unredeemed PKCE values are kept.
	StateTTL time.Duration
	Logger   *log.Logger
}

// Register adds the housekeeping jobs to s, each running on spec.
func (h *Housekeeping) Register(s *Scheduler, spec string) error {
	jobs := map[string]JobHandler{
		JobCleanupSharedItems: h.cleanupSharedItems,
		JobCleanupTokens:      h.cleanupTokens,
	}
	if h.Sessions != nil {
		jobs[JobCleanupSessions] = h.cleanupSessions
	}
	for name, handler := range jobs {
		if err := s.AddJob(name, spec, handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *Housekeeping) logger() *log.Logger {
	if h.Logger == nil {
		return log.StandardLogger()
	}
	return h.Logger
}

func (h *Housekeeping) cleanupSharedItems(ctx context.Context, job *Job) error {
	removed, err := h.Store.CleanupSharedItems(ctx, h.StateTTL)
	if err != nil {
		return err
	}
	h.record(job.Name, removed)
	return nil
}

func (h *Housekeeping) cleanupTokens(ctx context.Context, job *Job) error {
	removed, err := h.Store.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	h.record(job.Name, removed)
	return nil
}

func (h *Housekeeping) cleanupSessions(ctx context.Context, job *Job) error {
	expired, err := h.Sessions.Cleanup(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, scope := range expired {
		if err := h.Store.DeleteScope(ctx, scope); err != nil {
			errs = append(errs, fmt.Errorf("scope %s: %w", scope, err))
			continue
		}
		if h.States != nil {
			h.States.Forget(scope)
		}
	}
	h.record(job.Name, int64(len(expired)-len(errs)))
	return errors.Join(errs...)
}

func (h *Housekeeping) record(job string, removed int64) {
	if removed <= 0 {
		return
	}
	metrics.HousekeepingRemoved.WithLabelValues(job).Add(float64(removed))
	h.logger().WithFields(log.Fields{"job": job, "removed": removed}).Info("housekeeping removed stale records")
}
