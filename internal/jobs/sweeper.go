package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

// Sweeper runs startup recovery once and then purges the job table on a cron
// schedule. Failures are logged and never stop the schedule.
type Sweeper struct {
	store    *Store
	logger   infra.Logger
	metrics  *Metrics
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewSweeper validates schedule, which accepts the standard five-field form
// and descriptors such as "@every 1h".
func NewSweeper(store *Store, schedule string, logger infra.Logger, metrics *Metrics) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		schedule: schedule,
		cron:     cron.New(),
	}, nil
}

// Start fails jobs abandoned by a previous process, runs one verbose purge
// and schedules the periodic purge.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.recoverStartup()
	s.run(true)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(false) }); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cron.Start()
	s.started = true
	s.logger.Info().Str("schedule", s.schedule).Msg("job sweeper started")
	return nil
}

// RunOnce performs one purge pass immediately.
func (s *Sweeper) RunOnce() PurgeReport {
	return s.run(false)
}

// Stop halts the schedule and waits for a running pass or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) recoverStartup() {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Interface("panic", p).Msg("startup job recovery panicked")
		}
	}()
	n := s.store.FailStuckOnStartup()
	s.metrics.recovered(n)
	if n > 0 {
		s.logger.Warn().Int("failed", n).Msg("failed jobs interrupted by restart")
	}
}

func (s *Sweeper) run(verbose bool) (report PurgeReport) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Interface("panic", p).Msg("job sweep panicked")
		}
	}()
	report = s.store.PurgeExpired(verbose)
	s.metrics.sweep(report)
	if !report.Empty() || verbose {
		s.logger.Info().
			Int("purged", report.Purged).
			Int("released", report.ReleasedClaims).
			Int("failed", report.TimedOut).
			Msg("job sweep finished")
	}
	return report
}
