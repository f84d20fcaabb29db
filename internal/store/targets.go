package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertPushTarget registers (or re-points) the push destination for a
// device key. at becomes updated_at, and created_at on first insert.
func (r *SQLiteRepo) UpsertPushTarget(ctx context.Context, t *PushTarget, at time.Time) error {
	if t == nil {
		return errors.New("nil push target")
	}
	if t.DeviceKey == "" || t.Token == "" || t.Provider == "" {
		return errors.New("device key, provider and token are required")
	}
	now := at.UTC().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_targets (device_key, provider, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_key) DO UPDATE SET
			provider   = excluded.provider,
			token      = excluded.token,
			updated_at = excluded.updated_at`,
		t.DeviceKey, t.Provider, t.Token, now, now,
	)
	return err
}

// GetPushTarget returns the registered target or ErrNotFound.
func (r *SQLiteRepo) GetPushTarget(ctx context.Context, deviceKey string) (*PushTarget, error) {
	var (
		t                    PushTarget
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT device_key, provider, token, created_at, updated_at
		FROM push_targets
		WHERE device_key = ?`,
		deviceKey,
	).Scan(&t.DeviceKey, &t.Provider, &t.Token, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

// DeletePushTarget unregisters a device key. Missing keys are ignored.
func (r *SQLiteRepo) DeletePushTarget(ctx context.Context, deviceKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_targets WHERE device_key = ?`, deviceKey)
	return err
}
