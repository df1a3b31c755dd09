package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// logRepo implements repo.LogRepo
type logRepo struct {
	db *sql.DB
}

// Add appends an entry and trims the log to domain.MaxLogEntries
func (r *logRepo) Add(ctx context.Context, e *domain.ActivityLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_logs (id, type, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, string(e.Type), e.Message, e.Details, toMillis(e.Timestamp))
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM activity_logs
		WHERE seq <= (SELECT seq FROM activity_logs ORDER BY seq DESC LIMIT 1 OFFSET ?)
	`, domain.MaxLogEntries)
	if err != nil {
		return fmt.Errorf("trim logs: %w", err)
	}

	return tx.Commit()
}

// List lists entries newest first
func (r *logRepo) List(ctx context.Context, f repo.LogFilter) ([]*domain.ActivityLog, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT id, type, message, details, timestamp FROM activity_logs`)
	if f.Type != "" {
		sb.WriteString(` WHERE type = ?`)
		args = append(args, string(f.Type))
	}
	sb.WriteString(` ORDER BY seq DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*domain.ActivityLog, 0)
	for rows.Next() {
		var e domain.ActivityLog
		var typ string
		var ts int64
		if err := rows.Scan(&e.ID, &typ, &e.Message, &e.Details, &ts); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Type = domain.LogType(typ)
		e.Timestamp = fromMillis(ts)
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

// Clear deletes all entries
func (r *logRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs`); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}

// Count counts retained entries
func (r *logRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}
