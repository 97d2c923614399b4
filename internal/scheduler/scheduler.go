package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tanmiacare/go-notification-engine/internal/builder"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/metrics"
	"github.com/tanmiacare/go-notification-engine/internal/shared/config"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

// SchedulingConflictError is returned when reminder jobs are requested for
// an entity that still has unsent jobs
type SchedulingConflictError struct {
	EntityID string
	Unsent   int64
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("entity %s already has %d unsent reminder jobs", e.EntityID, e.Unsent)
}

// EntityNotFoundError is returned when an operation references an entity
// the scheduler has never created jobs for
type EntityNotFoundError struct {
	EntityID string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no reminder jobs exist for entity %s", e.EntityID)
}

// JobStore persists reminder jobs and hands out due-job claims
type JobStore interface {
	CreateMany(ctx context.Context, jobs []*domain.ReminderJob) error
	// ClaimDue atomically claims up to limit due, unsent, uncancelled jobs
	// for this instance. A job whose previous claim is older than staleAfter
	// is up for grabs again.
	ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, claimedBy string, limit int) ([]*domain.ReminderJob, error)
	MarkSent(ctx context.Context, jobID string, at time.Time) error
	ReleaseClaim(ctx context.Context, jobID string) error
	CancelUnsent(ctx context.Context, entityID string) (int64, error)
	CountUnsent(ctx context.Context, entityID string) (int64, error)
	CountForEntity(ctx context.Context, entityID string) (int64, error)
}

// Deliverer persists a built notification and hands it to the dispatcher
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

const claimBatchSize = 50

// Scheduler creates entity-anchored reminder jobs and fires them when due.
// Multiple instances may poll the same store; the claim protocol ensures a
// job fires once.
type Scheduler struct {
	cfg        config.SchedulerConfig
	jobs       JobStore
	builder    *builder.Builder
	deliverer  Deliverer
	log        *logger.Logger
	instanceID string
	now        func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewScheduler creates a reminder scheduler identified by instanceID in
// claim records
func NewScheduler(cfg config.SchedulerConfig, jobs JobStore, b *builder.Builder, d Deliverer, instanceID string, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		jobs:       jobs,
		builder:    b,
		deliverer:  d,
		log:        log,
		instanceID: instanceID,
		now:        time.Now,
		cron:       cron.New(),
	}
}

// Start begins the polling loop
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	id, err := s.cron.AddFunc(spec, s.poll)
	if err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.log.Info("Reminder scheduler started", "poll_interval", s.cfg.PollInterval, "instance_id", s.instanceID)
	return nil
}

// Stop halts polling and waits for a running poll to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Reminder scheduler stopped")
}

// ScheduleEntityReminders creates the full set of reminder jobs for an
// entity anchored at baseline. Offsets already in the past trigger
// immediately on the next poll. Returns SchedulingConflictError when the
// entity still has unsent jobs.
func (s *Scheduler) ScheduleEntityReminders(ctx context.Context, entityType, entityID string, req domain.ScheduleRemindersRequest) ([]*domain.ReminderJob, error) {
	unsent, err := s.jobs.CountUnsent(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("count unsent jobs for %s: %w", entityID, err)
	}
	if unsent > 0 {
		return nil, &SchedulingConflictError{EntityID: entityID, Unsent: unsent}
	}
	return s.createJobs(ctx, entityType, entityID, req)
}

// Reschedule cancels the entity's unsent jobs and recreates the full set
// against the new baseline
func (s *Scheduler) Reschedule(ctx context.Context, entityType, entityID string, req domain.ScheduleRemindersRequest) ([]*domain.ReminderJob, error) {
	cancelled, err := s.jobs.CancelUnsent(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("cancel unsent jobs for %s: %w", entityID, err)
	}
	s.log.Info("Rescheduling entity reminders",
		"entity_id", entityID, "cancelled_jobs", cancelled, "new_baseline", req.Baseline)
	return s.createJobs(ctx, entityType, entityID, req)
}

// Cancel voids every unsent reminder job for the entity. Cancelling an
// entity the scheduler has no record of is an EntityNotFoundError; an
// entity whose jobs all fired already cancels zero jobs without error.
func (s *Scheduler) Cancel(ctx context.Context, entityID string) (int64, error) {
	cancelled, err := s.jobs.CancelUnsent(ctx, entityID)
	if err != nil {
		return 0, fmt.Errorf("cancel jobs for %s: %w", entityID, err)
	}
	if cancelled == 0 {
		total, err := s.jobs.CountForEntity(ctx, entityID)
		if err != nil {
			return 0, fmt.Errorf("count jobs for %s: %w", entityID, err)
		}
		if total == 0 {
			return 0, &EntityNotFoundError{EntityID: entityID}
		}
	}
	s.log.Info("Cancelled entity reminders", "entity_id", entityID, "cancelled_jobs", cancelled)
	return cancelled, nil
}

// SendManualReminder builds and delivers one reminder kind immediately,
// bypassing the job store
func (s *Scheduler) SendManualReminder(ctx context.Context, entityType, entityID string, req domain.ManualReminderRequest) error {
	if !req.Kind.IsValid() {
		return fmt.Errorf("unknown reminder kind %q", req.Kind)
	}
	job := &domain.ReminderJob{
		RelatedEntityType: entityType,
		RelatedEntityID:   entityID,
		Kind:              req.Kind,
		Baseline:          req.Baseline,
		Recipients:        req.Recipients,
		Params:            req.Params,
		TriggerAt:         s.now(),
	}
	return s.fire(ctx, job)
}

func (s *Scheduler) createJobs(ctx context.Context, entityType, entityID string, req domain.ScheduleRemindersRequest) ([]*domain.ReminderJob, error) {
	now := s.now()
	jobs := make([]*domain.ReminderJob, 0, len(domain.ReminderKinds()))
	for _, kind := range domain.ReminderKinds() {
		triggerAt := req.Baseline.Add(-kind.Offset())
		if triggerAt.Before(now) {
			// already past, fires on the next poll
			triggerAt = now
		}
		jobs = append(jobs, &domain.ReminderJob{
			RelatedEntityType: entityType,
			RelatedEntityID:   entityID,
			Kind:              kind,
			TriggerAt:         triggerAt,
			Baseline:          req.Baseline,
			Recipients:        req.Recipients,
			Params:            req.Params,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	if err := s.jobs.CreateMany(ctx, jobs); err != nil {
		return nil, fmt.Errorf("create reminder jobs for %s: %w", entityID, err)
	}
	s.log.Info("Scheduled entity reminders",
		"entity_id", entityID, "baseline", req.Baseline, "jobs", len(jobs))
	return jobs, nil
}

// poll claims due jobs and fires them
func (s *Scheduler) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollInterval)
	defer cancel()

	due, err := s.jobs.ClaimDue(ctx, s.now(), s.cfg.ClaimTTL, s.instanceID, claimBatchSize)
	if err != nil {
		s.log.Error("Failed to claim due reminder jobs", "error", err)
		return
	}
	for _, job := range due {
		if err := s.fire(ctx, job); err != nil {
			s.log.Error("Failed to fire reminder job",
				"error", err, "job_id", job.ID.Hex(), "entity_id", job.RelatedEntityID, "kind", job.Kind)
			if rerr := s.jobs.ReleaseClaim(ctx, job.ID.Hex()); rerr != nil {
				s.log.Error("Failed to release claim", "error", rerr, "job_id", job.ID.Hex())
			}
			continue
		}
		if !job.ID.IsZero() {
			if err := s.jobs.MarkSent(ctx, job.ID.Hex(), s.now()); err != nil {
				s.log.Error("Failed to mark reminder job sent", "error", err, "job_id", job.ID.Hex())
			}
		}
	}
}

// notificationTypeFor maps a reminder kind to the template it fires.
// Reminders ahead of the baseline announce an upcoming session; the one at
// the baseline announces that it started.
func notificationTypeFor(kind domain.ReminderKind) domain.NotificationType {
	if kind == domain.ReminderNow {
		return domain.NotificationTypeSessionStarted
	}
	return domain.NotificationTypeSessionReminder
}

// fire builds and delivers one notification per recipient of the job
func (s *Scheduler) fire(ctx context.Context, job *domain.ReminderJob) error {
	params := make(map[string]string, len(job.Params)+1)
	for k, v := range job.Params {
		params[k] = v
	}
	if _, ok := params["session_time"]; !ok && !job.Baseline.IsZero() {
		params["session_time"] = job.Baseline.Format("2006-01-02 15:04")
	}

	var firstErr error
	for _, recipient := range job.Recipients {
		n, err := s.builder.Build(notificationTypeFor(job.Kind), params, recipient, &builder.Options{
			RelatedType: job.RelatedEntityType,
			RelatedID:   job.RelatedEntityID,
		})
		if err != nil {
			s.log.Error("Failed to build reminder notification",
				"error", err, "entity_id", job.RelatedEntityID, "recipient", recipient.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.deliverer.Deliver(ctx, n); err != nil {
			s.log.Error("Failed to deliver reminder notification",
				"error", err, "entity_id", job.RelatedEntityID, "recipient", recipient.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		metrics.ReminderJobsFired.WithLabelValues(string(job.Kind)).Inc()
	}
	return firstErr
}
