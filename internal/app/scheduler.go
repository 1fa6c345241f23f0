/**
 * @description
 * Cron scheduler setup for the background jobs.
 */

package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron             *cron.Cron
	jobs             *Jobs
	logger           *slog.Logger
	completeSchedule string
	expirySchedule   string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, completeSchedule, expirySchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:             c,
		jobs:             jobs,
		logger:           logger,
		completeSchedule: completeSchedule,
		expirySchedule:   expirySchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.completeSchedule, s.jobs.CompletePendingTransactions); err != nil {
		s.logger.Error("failed to schedule pending completion job", "error", err)
	} else {
		s.logger.Info("scheduled pending completion job", "schedule", s.completeSchedule)
	}

	if _, err := s.cron.AddFunc(s.expirySchedule, s.jobs.ExpireStaleIntents); err != nil {
		s.logger.Error("failed to schedule intent expiry job", "error", err)
	} else {
		s.logger.Info("scheduled intent expiry job", "schedule", s.expirySchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
