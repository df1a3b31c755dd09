package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// StatsUsecase composes the stats snapshot from the persisted counters
type StatsUsecase struct {
	store *repo.Store
	now   func() time.Time
}

// NewStatsUsecase creates a new stats usecase
func NewStatsUsecase(store *repo.Store) *StatsUsecase {
	return &StatsUsecase{store: store, now: time.Now}
}

// Snapshot returns the stats for the given lifecycle state.
// Uptime only accrues while connected.
func (uc *StatsUsecase) Snapshot(ctx context.Context, state domain.ConnState) (*domain.Stats, error) {
	counters, err := uc.store.Stats.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get counters: %w", err)
	}
	users, err := uc.store.Users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	threads, err := uc.store.Threads.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count threads: %w", err)
	}
	session, err := uc.store.Session.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var uptime int64
	if state == domain.StateConnected && !counters.StartTime.IsZero() {
		uptime = int64(uc.now().Sub(counters.StartTime) / time.Second)
		if uptime < 0 {
			uptime = 0
		}
	}

	return &domain.Stats{
		Uptime:           uptime,
		TotalUsers:       users,
		TotalThreads:     threads,
		MessagesReceived: counters.MessagesReceived,
		MessagesSent:     counters.MessagesSent,
		CommandsExecuted: counters.CommandsExecuted,
		ConnectionStatus: domain.StatusFor(state),
		ConnectionHealth: session.ConnectionHealth,
	}, nil
}
