package sched

import (
	"context"
	"time"

	"priceowl/crawlworker/internal/dispatch"
	"priceowl/crawlworker/internal/ingest"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/logger"
)

const dispatchLockName = "schedule:dispatch"

// Scheduler drives the recurring crawl cadence and the pause-expiry sweep.
// The cadence is guarded by a distributed lock so a fleet of workers
// dispatches each cycle exactly once; the sweep is idempotent and runs on
// every instance.
type Scheduler struct {
	dispatcher *dispatch.Dispatcher
	retailers  retailer.Store
	notifier   ingest.StatusNotifier
	locker     Locker
	interval   time.Duration
	sweep      time.Duration
	lockTTL    time.Duration
	log        *logger.Logger
}

// Config bundles the scheduler's collaborators and cadence settings
type Config struct {
	Dispatcher    *dispatch.Dispatcher
	Retailers     retailer.Store
	Notifier      ingest.StatusNotifier
	Locker        Locker
	Interval      time.Duration
	SweepInterval time.Duration
	LockTTL       time.Duration
}

// New creates a scheduler
func New(cfg Config) *Scheduler {
	return &Scheduler{
		dispatcher: cfg.Dispatcher,
		retailers:  cfg.Retailers,
		notifier:   cfg.Notifier,
		locker:     cfg.Locker,
		interval:   cfg.Interval,
		sweep:      cfg.SweepInterval,
		lockTTL:    cfg.LockTTL,
		log:        logger.ForComponent("scheduler"),
	}
}

// Run drives both loops until the context ends. The first dispatch cycle
// fires immediately; the sweep waits for its first tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.interval).
		Dur("sweep_interval", s.sweep).
		Msg("Scheduler started")

	dispatchTicker := time.NewTicker(s.interval)
	defer dispatchTicker.Stop()
	sweepTicker := time.NewTicker(s.sweep)
	defer sweepTicker.Stop()

	s.RunDispatchCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-dispatchTicker.C:
			s.RunDispatchCycle(ctx)
		case <-sweepTicker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunDispatchCycle dispatches all eligible retailers once, if this
// instance wins the cycle lock. Losing the lock means another instance is
// already dispatching; that is a normal outcome.
func (s *Scheduler) RunDispatchCycle(ctx context.Context) {
	release, ok, err := s.locker.Acquire(ctx, dispatchLockName, s.lockTTL)
	if err != nil {
		s.log.WithError(err).Error().Msg("Failed to acquire dispatch lock")
		return
	}
	if !ok {
		s.log.Debug().Msg("Dispatch cycle held by another instance")
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.log.WithError(err).Warn().Msg("Failed to release dispatch lock")
		}
	}()

	report, err := s.dispatcher.DispatchAll(ctx, dispatch.Options{})
	if err != nil {
		s.log.WithError(err).Error().Msg("Dispatch cycle failed")
		return
	}
	s.log.Info().
		Str("run_id", report.RunID).
		Int("jobs", report.Total()).
		Int("skipped", len(report.Skipped)).
		Msg("Dispatch cycle completed")
}

// RunSweep re-activates retailers whose pause has lapsed. Finding none is
// silent; each resumed retailer gets a status notification.
func (s *Scheduler) RunSweep(ctx context.Context) {
	slugs, err := s.retailers.ResumeExpired(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Error().Msg("Pause-expiry sweep failed")
		return
	}
	if len(slugs) == 0 {
		return
	}

	s.log.Info().Strs("retailers", slugs).Msg("Resumed retailers with expired pauses")
	if s.notifier == nil {
		return
	}
	for _, slug := range slugs {
		change := ingest.StatusChange{
			Slug:   slug,
			From:   string(retailer.StatusPaused),
			To:     string(retailer.StatusActive),
			Reason: "pause expired",
		}
		if err := s.notifier.NotifyStatusChange(ctx, change); err != nil {
			s.log.WithError(err).WithField("retailer", slug).
				Warn().Msg("Failed to publish resume notification")
		}
	}
}
