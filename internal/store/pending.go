package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetPending raises (or re-raises) the flag for token with creation time at.
// An existing flag is overwritten, which also refreshes its age.
func (r *SQLiteRepo) SetPending(ctx context.Context, token string, at time.Time) error {
	if token == "" {
		return errors.New("empty token")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_actions (token, created_at_ms) VALUES (?, ?)
		ON CONFLICT(token) DO UPDATE SET created_at_ms = excluded.created_at_ms`,
		token, at.UnixMilli(),
	)
	return err
}

// TakePending reads and clears the flag in one transaction.
func (r *SQLiteRepo) TakePending(ctx context.Context, token string, now time.Time, maxAge time.Duration) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var createdMs int64
	err = tx.QueryRowContext(ctx, `SELECT created_at_ms FROM pending_actions WHERE token = ?`, token).Scan(&createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if maxAge > 0 {
		age := now.Sub(time.UnixMilli(createdMs))
		if age > maxAge {
			// Stale flags stay until overwritten; there is no expiry sweep.
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_actions WHERE token = ?`, token); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
