// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RuleRefresher reloads categorization rules from the rule store into the
// in-memory engine.
type RuleRefresher interface {
	RefreshRules(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	refresher RuleRefresher
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(refresher RuleRefresher, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		refresher: refresher,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Rule cache refresh: every 15 minutes, picks up rules edited outside
	// this process.
	_, err := s.cron.AddFunc("*/15 * * * *", s.refreshRules)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers a rule refresh (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.refreshRules()
}

func (s *Scheduler) refreshRules() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.refresher.RefreshRules(ctx); err != nil {
		s.logger.Error("failed to refresh categorization rules", slog.Any("error", err))
		return
	}

	s.logger.Debug("categorization rules refreshed")
}
