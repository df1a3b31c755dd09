package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/repo"
)

// Sweeper evicts expired in-memory entries and reports how many went
type Sweeper interface {
	Sweep(now time.Time) int
}

// Scheduler runs the periodic housekeeping jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	bot      *BotCore
	sweepers map[string]Sweeper
	notifier repo.Notifier
	logger   zerolog.Logger

	sweepEvery time.Duration
	statsEvery time.Duration
}

// NewScheduler creates a scheduler. Named sweepers are swept every
// sweepEvery; a stats snapshot is broadcast every statsEvery.
func NewScheduler(bot *BotCore, notifier repo.Notifier, sweepers map[string]Sweeper, sweepEvery, statsEvery time.Duration, logger zerolog.Logger) *Scheduler {
	if notifier == nil {
		notifier = repo.NopNotifier{}
	}
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		bot:        bot,
		sweepers:   sweepers,
		notifier:   notifier,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		sweepEvery: sweepEvery,
		statsEvery: statsEvery,
	}
}

// Start registers the jobs and runs them in the background
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(s.sweepEvery).Do(s.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if _, err := s.cron.Every(s.statsEvery).Do(s.broadcastStats); err != nil {
		return fmt.Errorf("schedule stats broadcast: %w", err)
	}
	s.cron.StartAsync()
	s.logger.Info().
		Dur("sweep_every", s.sweepEvery).
		Dur("stats_every", s.statsEvery).
		Msg("scheduler started")
	return nil
}

// Stop halts all jobs
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) sweep() {
	now := time.Now()
	for name, sw := range s.sweepers {
		if n := sw.Sweep(now); n > 0 {
			s.logger.Debug().Str("sweeper", name).Int("evicted", n).Msg("swept")
		}
	}
}

func (s *Scheduler) broadcastStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := s.bot.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot stats")
		return
	}
	s.notifier.Notify(repo.NotifyStats, stats)
}
