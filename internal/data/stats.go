package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// statsRepo implements repo.StatsRepo
type statsRepo struct {
	db *sql.DB
}

// Counters returns the global counters
func (r *statsRepo) Counters(ctx context.Context) (*domain.Counters, error) {
	var c domain.Counters
	var start int64
	err := r.db.QueryRowContext(ctx, `
		SELECT messages_received, messages_sent, commands_executed, start_time
		FROM stats WHERE id = 1
	`).Scan(&c.MessagesReceived, &c.MessagesSent, &c.CommandsExecuted, &start)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	c.StartTime = fromMillis(start)
	return &c, nil
}

// Increment bumps one counter
func (r *statsRepo) Increment(ctx context.Context, c domain.Counter) error {
	var column string
	switch c {
	case domain.CounterMessagesReceived, domain.CounterMessagesSent, domain.CounterCommandsExecuted:
		column = string(c)
	default:
		return fmt.Errorf("unknown counter %q", c)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE stats SET `+column+` = `+column+` + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// SetStartTime records the start of the current connection
func (r *statsRepo) SetStartTime(ctx context.Context, t time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE stats SET start_time = ? WHERE id = 1`, toMillis(t)); err != nil {
		return fmt.Errorf("set start time: %w", err)
	}
	return nil
}
