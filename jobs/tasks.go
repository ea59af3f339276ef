package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMembershipInvalidate drops every cached membership lookup.
	TaskMembershipInvalidate = "grouprole:membership_invalidate"
)

// MembershipInvalidatePayload describes why the cache is being invalidated.
type MembershipInvalidatePayload struct {
	Reason string `json:"reason"`
}

// NewMembershipInvalidateTask constructs an Asynq task.
func NewMembershipInvalidateTask(payload MembershipInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMembershipInvalidate, data, asynq.MaxRetry(3)), nil
}

// CacheInvalidator bumps the membership cache version.
type CacheInvalidator interface {
	Bump(ctx context.Context) (int64, error)
}

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(job string, err error)
}

// MembershipInvalidateJob processes TaskMembershipInvalidate tasks.
type MembershipInvalidateJob struct {
	cache    CacheInvalidator
	logger   *slog.Logger
	observer JobObserver
}

// NewMembershipInvalidateJob wires the job. logger and observer may be nil.
func NewMembershipInvalidateJob(cache CacheInvalidator, logger *slog.Logger, observer JobObserver) *MembershipInvalidateJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipInvalidateJob{cache: cache, logger: logger, observer: observer}
}

// Handle processes a single task.
func (j *MembershipInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload MembershipInvalidatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.observe(err)
			return fmt.Errorf("jobs: decode %s: %v: %w", TaskMembershipInvalidate, err, asynq.SkipRetry)
		}
	}
	version, err := j.cache.Bump(ctx)
	j.observe(err)
	if err != nil {
		return fmt.Errorf("jobs: invalidate membership cache: %w", err)
	}
	j.logger.Info("membership cache invalidated", slog.String("reason", payload.Reason), slog.Int64("version", version))
	return nil
}

func (j *MembershipInvalidateJob) observe(err error) {
	if j.observer != nil {
		j.observer.ObserveJob(TaskMembershipInvalidate, err)
	}
}
