// Package scheduler drives the recurring per-account jobs of the repricer:
// listing unlisted inventory and repricing stale listings. Each
// (account, job type) pair resumes from its persisted checkpoint after a
// restart instead of firing immediately.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"repricer/config"
	"repricer/logger"
	"repricer/models"
	"repricer/services/events"
	"repricer/services/listing"
	"repricer/services/marketplace"
	"repricer/services/pricecache"
	"repricer/services/repricing"
	"repricer/store"
)

// Supervisor owns one scheduler pair per configured account and the shared
// gocron instance driving them all.
type Supervisor struct {
	cron     *gocron.Scheduler
	accounts []*AccountScheduler
	log      *zap.SugaredLogger
}

// NewSupervisor builds an account scheduler pair for every configured API key.
// All accounts share one price cache, one checkpoint store and one audit store.
func NewSupervisor(cfg *config.Config, api marketplace.API, cache *pricecache.Cache, checkpoints *store.CheckpointStore, audit *store.AuditStore, hub *events.Hub) *Supervisor {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	supervisor := &Supervisor{
		cron: cron,
		log:  logger.Component("scheduler"),
	}

	for _, apiKey := range cfg.MarketAPIKeys {
		account := models.Account{APIKey: apiKey}
		supervisor.accounts = append(supervisor.accounts, newAccountScheduler(
			account,
			cron,
			listing.NewPlanner(api, cache, cfg.AppIDs),
			repricing.NewPlanner(api, cache),
			checkpoints,
			audit,
			hub,
			cfg.ListInterval,
			cfg.RepriceInterval,
		))
	}

	return supervisor
}

// Start computes every job's resume delay and begins the recurring schedules
func (s *Supervisor) Start() error {
	for _, account := range s.accounts {
		if err := account.schedule(); err != nil {
			return err
		}
	}

	s.cron.StartAsync()
	s.log.Infof("Scheduler started for %d accounts", len(s.accounts))
	return nil
}

// Stop halts the schedulers. Runs already in flight finish on their own.
func (s *Supervisor) Stop() {
	s.cron.Stop()
	s.log.Info("Scheduler stopped")
}

// JobStatus describes one scheduled job for the ops surface
type JobStatus struct {
	Account string    `json:"account"`
	JobType string    `json:"job_type"`
	LastRun time.Time `json:"last_run"`
	NextRun time.Time `json:"next_run"`
}

// JobStatuses reports the current schedule of every job across all accounts
func (s *Supervisor) JobStatuses() []JobStatus {
	var statuses []JobStatus
	for _, account := range s.accounts {
		statuses = append(statuses, account.statuses()...)
	}
	return statuses
}
