package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"repricer/config"
	"repricer/logger"
	"repricer/models"
	"repricer/services/events"
	"repricer/services/listing"
	"repricer/services/pricecache"
	"repricer/services/repricing"
	"repricer/store"
)

const (
	// ResumeWindow bounds how old a checkpoint may be to still influence
	// the resume delay; older checkpoints mean a full-interval wait
	ResumeWindow = time.Hour
	// ImmediateRunThreshold: a resume delay under this triggers one run
	// before the recurring schedule takes over
	ImmediateRunThreshold = time.Minute

	// RunTimeout bounds a single job run so a hung marketplace call cannot
	// stall the schedule forever
	RunTimeout = 5 * time.Minute

	storeTimeout = 10 * time.Second
)

// runStats normalizes what both planners report about a run
type runStats struct {
	items        int
	chunks       int
	failedChunks int
}

type jobFunc func(ctx context.Context) (runStats, error)

type scheduledJob struct {
	jobType string
	job     *gocron.Job
}

// AccountScheduler owns the two recurring jobs of one account
type AccountScheduler struct {
	account     models.Account
	cron        *gocron.Scheduler
	lister      *listing.Planner
	repricer    *repricing.Planner
	checkpoints *store.CheckpointStore
	audit       *store.AuditStore
	hub         *events.Hub

	listInterval    time.Duration
	repriceInterval time.Duration

	jobs []scheduledJob
	log  *zap.SugaredLogger
	now  func() time.Time
}

func newAccountScheduler(account models.Account, cron *gocron.Scheduler, lister *listing.Planner, repricer *repricing.Planner, checkpoints *store.CheckpointStore, audit *store.AuditStore, hub *events.Hub, listInterval, repriceInterval time.Duration) *AccountScheduler {
	return &AccountScheduler{
		account:         account,
		cron:            cron,
		lister:          lister,
		repricer:        repricer,
		checkpoints:     checkpoints,
		audit:           audit,
		hub:             hub,
		listInterval:    listInterval,
		repriceInterval: repriceInterval,
		log:             logger.Component("scheduler").With("account", config.MaskKey(account.APIKey)),
		now:             time.Now,
	}
}

// schedule registers both jobs, resuming each from its persisted checkpoint
func (s *AccountScheduler) schedule() error {
	if err := s.scheduleJob(models.JobTypeListItems, s.listInterval, func(ctx context.Context) (runStats, error) {
		result, err := s.lister.Run(ctx, s.account)
		return runStats{items: result.Listed, chunks: result.Chunks, failedChunks: result.FailedChunks}, err
	}); err != nil {
		return err
	}

	return s.scheduleJob(models.JobTypePriceEdits, s.repriceInterval, func(ctx context.Context) (runStats, error) {
		result, err := s.repricer.Run(ctx, s.account)
		return runStats{items: result.Repriced, chunks: result.Chunks, failedChunks: result.FailedChunks}, err
	})
}

func (s *AccountScheduler) scheduleJob(jobType string, interval time.Duration, run jobFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	lastRun, found, err := s.checkpoints.LastRun(ctx, s.account, jobType)
	cancel()
	if err != nil {
		s.log.Warnf("Failed to read %s checkpoint, treating as no recent run: %v", jobType, err)
		found = false
	}

	delay := resumeDelay(lastRun, found, interval, s.now())
	s.log.Infof("Starting next %s in %s", jobType, delay)

	exec := func() { s.execute(jobType, run) }

	// The recurring schedule begins one full interval after the resume delay
	job, err := s.cron.Every(interval).StartAt(s.now().Add(delay + interval)).Do(exec)
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, scheduledJob{jobType: jobType, job: job})

	// A near-due checkpoint gets one catch-up run at the resume point, so
	// rounding and restart drift never make the recurring schedule fire early
	if delay < ImmediateRunThreshold {
		if _, err := s.cron.Every(interval).StartAt(s.now().Add(delay)).LimitRunsTo(1).Do(exec); err != nil {
			return err
		}
	}

	return nil
}

// resumeDelay computes how long to wait before a job's schedule resumes.
// A checkpoint older than ResumeWindow (or absent) yields a full interval.
func resumeDelay(lastRun time.Time, found bool, interval time.Duration, now time.Time) time.Duration {
	if !found {
		return interval
	}
	elapsed := now.Sub(lastRun)
	if elapsed >= ResumeWindow {
		return interval
	}
	delay := interval - elapsed
	if delay < 0 {
		delay = 0
	}
	return delay
}

// execute wraps one job run: bounded context, outcome classification,
// checkpoint update, audit record and event publish. The checkpoint is
// written after every run, failed or not, so a restart cannot fall into a
// tight retry loop.
func (s *AccountScheduler) execute(jobType string, run jobFunc) {
	started := s.now()

	ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
	stats, err := run(ctx)
	cancel()

	duration := s.now().Sub(started)
	outcome := classify(stats, err)
	if err != nil {
		s.log.Warnf("%s run finished as %s after %s: %v", jobType, outcome, duration, err)
	} else {
		s.log.Infof("%s run finished as %s after %s (%d items, %d chunks, %d failed chunks)",
			jobType, outcome, duration, stats.items, stats.chunks, stats.failedChunks)
	}

	cpCtx, cpCancel := context.WithTimeout(context.Background(), storeTimeout)
	if cpErr := s.checkpoints.SetLastRun(cpCtx, s.account, jobType, s.now()); cpErr != nil {
		s.log.Warnf("Failed to persist %s checkpoint: %v", jobType, cpErr)
	}
	cpCancel()

	masked := config.MaskKey(s.account.APIKey)
	errText := ""
	if err != nil {
		errText = err.Error()
	}

	if s.audit != nil {
		record := &models.JobRun{
			Account:    masked,
			JobType:    jobType,
			StartedAt:  started,
			Duration:   duration,
			Outcome:    outcome,
			ItemCount:  stats.items,
			ChunkCount: stats.chunks,
			Error:      errText,
		}
		if auditErr := s.audit.Record(record); auditErr != nil {
			s.log.Warnf("Failed to record %s run: %v", jobType, auditErr)
		}
	}

	if s.hub != nil {
		s.hub.Publish(events.RunEvent{
			Account:    masked,
			JobType:    jobType,
			Outcome:    outcome,
			ItemCount:  stats.items,
			DurationMS: duration.Milliseconds(),
			Error:      errText,
			Time:       started,
		})
	}
}

// classify maps a run's result onto an audit outcome
func classify(stats runStats, err error) string {
	switch {
	case errors.Is(err, pricecache.ErrPriceDataUnavailable):
		return models.RunOutcomeAborted
	case err != nil:
		return models.RunOutcomeError
	case stats.items == 0:
		return models.RunOutcomeNoOp
	default:
		return models.RunOutcomeSuccess
	}
}

// statuses reports this account's recurring jobs for the ops surface
func (s *AccountScheduler) statuses() []JobStatus {
	masked := config.MaskKey(s.account.APIKey)
	out := make([]JobStatus, 0, len(s.jobs))
	for _, sj := range s.jobs {
		out = append(out, JobStatus{
			Account: masked,
			JobType: sj.jobType,
			LastRun: sj.job.LastRun(),
			NextRun: sj.job.NextRun(),
		})
	}
	return out
}
