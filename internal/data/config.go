package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// configRepo implements repo.ConfigRepo. The singleton row holds JSON so
// new fields fall back to their defaults without a migration.
type configRepo struct {
	db *sql.DB
}

func loadConfig(ctx context.Context, q queryRower) (*domain.BotConfig, error) {
	cfg := domain.DefaultBotConfig()

	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM bot_config WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Get returns the bot configuration
func (r *configRepo) Get(ctx context.Context) (*domain.BotConfig, error) {
	return loadConfig(ctx, r.db)
}

// Update applies a patch to the bot configuration
func (r *configRepo) Update(ctx context.Context, patch domain.ConfigPatch) (*domain.BotConfig, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	patch.Apply(cfg)

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bot_config (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, string(raw))
	if err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return cfg, nil
}
