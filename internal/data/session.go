package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// sessionRepo implements repo.SessionRepo
type sessionRepo struct {
	db *sql.DB
}

func loadSession(ctx context.Context, q queryRower) (*domain.Session, error) {
	var s domain.Session
	var lastConnected int64
	err := q.QueryRowContext(ctx, `
		SELECT app_state, username, user_id, is_connected, last_connected, connection_health
		FROM session WHERE id = 1
	`).Scan(&s.AppState, &s.Username, &s.UserID, &s.IsConnected, &lastConnected, &s.ConnectionHealth)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	s.LastConnected = fromMillis(lastConnected)
	return &s, nil
}

// Get returns the session record
func (r *sessionRepo) Get(ctx context.Context) (*domain.Session, error) {
	return loadSession(ctx, r.db)
}

// Update applies a patch to the session record
func (r *sessionRepo) Update(ctx context.Context, patch domain.SessionPatch) (*domain.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	s, err := loadSession(ctx, tx)
	if err != nil {
		return nil, err
	}
	patch.Apply(s)

	_, err = tx.ExecContext(ctx, `
		UPDATE session SET app_state = ?, username = ?, user_id = ?, is_connected = ?,
			last_connected = ?, connection_health = ?
		WHERE id = 1
	`, s.AppState, s.Username, s.UserID, s.IsConnected, toMillis(s.LastConnected), s.ConnectionHealth)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}
