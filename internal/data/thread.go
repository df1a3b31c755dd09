package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

const threadColumns = `id, name, is_group, participant_count, message_count, is_muted, last_message, last_message_time`

// threadRepo implements repo.ThreadRepo
type threadRepo struct {
	db *sql.DB
}

func scanThread(s rowScanner) (*domain.Thread, error) {
	var t domain.Thread
	var lastTime int64
	if err := s.Scan(&t.ID, &t.Name, &t.IsGroup, &t.ParticipantCount, &t.MessageCount,
		&t.IsMuted, &t.LastMessage, &lastTime); err != nil {
		return nil, err
	}
	t.LastMessageTime = fromMillis(lastTime)
	return &t, nil
}

// Get gets a thread by id
func (r *threadRepo) Get(ctx context.Context, id string) (*domain.Thread, error) {
	t, err := scanThread(r.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	return t, nil
}

// List lists threads, most recent activity first
func (r *threadRepo) List(ctx context.Context) ([]*domain.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY last_message_time DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []*domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// Count counts threads
func (r *threadRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return n, nil
}

// Touch upserts the thread and bumps its message count
func (r *threadRepo) Touch(ctx context.Context, t repo.ThreadTouch) (*domain.Thread, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO threads (id, name, is_group, message_count, last_message, last_message_time)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			message_count = message_count + 1,
			is_group = excluded.is_group,
			last_message = excluded.last_message,
			last_message_time = excluded.last_message_time
		RETURNING `+threadColumns,
		t.ID, t.Name, t.IsGroup, domain.Preview(t.LastMessage), toMillis(t.At))

	thread, err := scanThread(row)
	if err != nil {
		return nil, fmt.Errorf("touch thread: %w", err)
	}
	return thread, nil
}

// Update applies a patch to a thread
func (r *threadRepo) Update(ctx context.Context, id string, patch domain.ThreadPatch) (*domain.Thread, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}

	patch.Apply(t)
	if _, err := tx.ExecContext(ctx, `UPDATE threads SET name = ?, is_muted = ? WHERE id = ?`, t.Name, t.IsMuted, id); err != nil {
		return nil, fmt.Errorf("update thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}
