package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// RebuildScheduler forces a fresh generation cycle on a fixed interval. Watch
// mode uses it as a safety net for filesystem events the watcher missed.
type RebuildScheduler struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	trigger   func()
	logger    *slog.Logger
}

// NewRebuildScheduler creates a scheduler that calls trigger every interval.
func NewRebuildScheduler(interval time.Duration, trigger func(), logger *slog.Logger) (*RebuildScheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryRuntime, errors.SeverityFatal, "create scheduler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildScheduler{
		scheduler: s,
		interval:  interval,
		trigger:   trigger,
		logger:    logger,
	}, nil
}

// Start registers the periodic job and begins the scheduler.
func (s *RebuildScheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.logger.Info("scheduled rebuild trigger", "interval", s.interval)
			s.trigger()
		}),
		gocron.WithName("forced-rebuild"),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryRuntime, errors.SeverityFatal, "schedule rebuild job")
	}

	s.logger.Info("starting rebuild scheduler", "interval", s.interval)
	s.scheduler.Start()
	return nil
}

// Stop gracefully shuts the scheduler down.
func (s *RebuildScheduler) Stop() error {
	s.logger.Info("stopping rebuild scheduler")
	return s.scheduler.Shutdown()
}
