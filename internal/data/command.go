package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

const commandColumns = `id, name, description, category, usage, cooldown, is_enabled, usage_count, created_at`

// commandRepo implements repo.CommandRepo
type commandRepo struct {
	db *sql.DB
}

func scanCommand(s rowScanner) (*domain.Command, error) {
	var c domain.Command
	var createdAt int64
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &c.Usage, &c.Cooldown,
		&c.IsEnabled, &c.UsageCount, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

func (r *commandRepo) getOne(ctx context.Context, q queryRower, where string, arg any) (*domain.Command, error) {
	c, err := scanCommand(q.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM commands WHERE `+where+` = ?`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("command %v: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query command: %w", err)
	}
	return c, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetByName gets a command row by name
func (r *commandRepo) GetByName(ctx context.Context, name string) (*domain.Command, error) {
	return r.getOne(ctx, r.db, "name", name)
}

// GetByID gets a command row by id
func (r *commandRepo) GetByID(ctx context.Context, id string) (*domain.Command, error) {
	return r.getOne(ctx, r.db, "id", id)
}

// List lists command rows by name
func (r *commandRepo) List(ctx context.Context) ([]*domain.Command, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+commandColumns+` FROM commands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var cmds []*domain.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// CreateIfAbsent inserts a default row unless the name exists
func (r *commandRepo) CreateIfAbsent(ctx context.Context, meta domain.CommandMeta) (bool, error) {
	meta = meta.Normalize()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO commands (id, name, description, category, usage, cooldown, is_enabled, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, 0, ?)
		ON CONFLICT(name) DO NOTHING
	`, uuid.NewString(), meta.Name, meta.Description, meta.Category, meta.Usage, meta.Cooldown, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// IncrementUsage bumps the usage counter of a command row
func (r *commandRepo) IncrementUsage(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE commands SET usage_count = usage_count + 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("command %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// Update applies a patch to a command row
func (r *commandRepo) Update(ctx context.Context, id string, patch domain.CommandPatch) (*domain.Command, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := r.getOne(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}

	patch.Apply(c)
	_, err = tx.ExecContext(ctx, `UPDATE commands SET is_enabled = ?, cooldown = ?, description = ? WHERE id = ?`,
		c.IsEnabled, c.Cooldown, c.Description, id)
	if err != nil {
		return nil, fmt.Errorf("update command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}
