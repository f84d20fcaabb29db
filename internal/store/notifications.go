package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertNotification stores a scheduled notification. ID must be unique.
func (r *SQLiteRepo) InsertNotification(ctx context.Context, n *Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	if n.ID == "" {
		return errors.New("notification id required")
	}
	data, err := encodeData(n.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	if n.CreatedAt.IsZero() {
		return errors.New("notification created_at required")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scheduled_notifications (id, title, body, data_json, fire_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, data, n.FireAt.UTC().Unix(), n.CreatedAt.UTC().Unix(),
	)
	return err
}

// DeleteNotification removes a scheduled notification, returning
// ErrNotFound if there was none with that id.
func (r *SQLiteRepo) DeleteNotification(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_notifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetNotification returns a scheduled notification by id.
func (r *SQLiteRepo) GetNotification(ctx context.Context, id string) (*Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, body, data_json, fire_at, created_at
		FROM scheduled_notifications
		WHERE id = ?`,
		id,
	)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// ListDueNotifications returns up to limit notifications with fire_at <= now,
// oldest first.
func (r *SQLiteRepo) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, body, data_json, fire_at, created_at
		FROM scheduled_notifications
		WHERE fire_at <= ?
		ORDER BY fire_at ASC
		LIMIT ?`,
		now.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// CountNotifications returns how many notifications are scheduled.
func (r *SQLiteRepo) CountNotifications(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scheduled_notifications`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(s rowScanner) (*Notification, error) {
	var (
		id, title, body, dataJSON string
		fireAt, createdAt         int64
	)
	if err := s.Scan(&id, &title, &body, &dataJSON, &fireAt, &createdAt); err != nil {
		return nil, err
	}
	data, err := decodeData(dataJSON)
	if err != nil {
		return nil, fmt.Errorf("decode data for %s: %w", id, err)
	}
	return &Notification{
		ID:        id,
		Title:     title,
		Body:      body,
		Data:      data,
		FireAt:    time.Unix(fireAt, 0).UTC(),
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}
