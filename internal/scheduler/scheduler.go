package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Backfiller stores missing posters
type Backfiller interface {
	BackfillAll(ctx context.Context) (controllers.BackfillResult, error)
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	backfill Backfiller
	schedule string
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	// running guards against overlapping sweeps
	running sync.Mutex
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(backfill Backfiller, schedule string, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		backfill: backfill,
		schedule: schedule,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runBackfill()
	})
	if err != nil {
		return fmt.Errorf("failed to add poster backfill job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scheduler started")

	// Run initial backfill immediately
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBackfill()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// runBackfill executes the poster backfill job
func (s *Scheduler) runBackfill() {
	if !s.running.TryLock() {
		s.logger.Debug("Poster backfill already running, skipping")
		return
	}
	defer s.running.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	s.logger.Info("Running scheduled poster backfill")
	if _, err := s.backfill.BackfillAll(s.ctx); err != nil {
		s.logger.WithError(err).Error("Poster backfill job failed")
	} else {
		s.logger.Info("Poster backfill job completed successfully")
	}
}
