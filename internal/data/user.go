package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

const userColumns = `id, username, full_name, profile_pic, is_admin, is_blocked, message_count, experience, last_active`

// userRepo implements repo.UserRepo
type userRepo struct {
	db *sql.DB
}

func scanUser(s rowScanner) (*domain.User, error) {
	var u domain.User
	var lastActive int64
	if err := s.Scan(&u.ID, &u.Username, &u.FullName, &u.ProfilePic, &u.IsAdmin, &u.IsBlocked,
		&u.MessageCount, &u.Experience, &lastActive); err != nil {
		return nil, err
	}
	u.LastActive = fromMillis(lastActive)
	return &u, nil
}

// Get gets a user by id
func (r *userRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// List lists users, most recently active first
func (r *userRepo) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_active DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count counts users
func (r *userRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Touch upserts the user and bumps its message count
func (r *userRepo) Touch(ctx context.Context, id, username string, at time.Time) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, message_count, last_active)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			message_count = message_count + 1,
			last_active = excluded.last_active
		RETURNING `+userColumns,
		id, username, toMillis(at))

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	return u, nil
}

// Update applies a patch to a user
func (r *userRepo) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	patch.Apply(u)
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET username = ?, full_name = ?, is_admin = ?, is_blocked = ?
		WHERE id = ?
	`, u.Username, u.FullName, u.IsAdmin, u.IsBlocked, id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}
