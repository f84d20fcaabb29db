package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/sobre/internal/domain"
)

// SQLiteRepo implements every repository in this package on one embedded
// SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var (
	_ KV               = (*SQLiteRepo)(nil)
	_ DeviceRepo       = (*SQLiteRepo)(nil)
	_ NotificationRepo = (*SQLiteRepo)(nil)
	_ PendingRepo      = (*SQLiteRepo)(nil)
	_ PushTargetRepo   = (*SQLiteRepo)(nil)
)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// GetScheduleSettings returns the single settings row.
func (r *SQLiteRepo) GetScheduleSettings(ctx context.Context) (domain.ScheduleSettings, error) {
	var (
		enabled   int
		resetTime string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT daily_enabled, daily_reset_time
		FROM schedule_settings
		WHERE id = 1`,
	).Scan(&enabled, &resetTime)
	if err != nil {
		return domain.ScheduleSettings{}, err
	}
	return domain.ScheduleSettings{DailyEnabled: enabled != 0, DailyResetTime: resetTime}, nil
}

// SetScheduleSettings overwrites the settings row. The reset time must be a
// valid HH:mm value; it is stored zero-padded.
func (r *SQLiteRepo) SetScheduleSettings(ctx context.Context, s domain.ScheduleSettings) error {
	rt, err := domain.ParseResetTime(s.DailyResetTime)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE schedule_settings
		SET daily_enabled = ?, daily_reset_time = ?
		WHERE id = 1`,
		boolToInt(s.DailyEnabled), rt.String(),
	)
	return err
}

// GetBlockState returns the unlock window and emergency state.
func (r *SQLiteRepo) GetBlockState(ctx context.Context) (domain.BlockState, error) {
	var (
		until      int64
		emergency  int
		emergUntil int64
		applied    int
		appliedNS  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT daily_unlocked_until, emergency_active, emergency_until,
		       shields_applied, shields_applied_at
		FROM block_state
		WHERE id = 1`,
	).Scan(&until, &emergency, &emergUntil, &applied, &appliedNS)
	if err != nil {
		return domain.BlockState{}, err
	}
	return domain.BlockState{
		DailyUnlockedUntil: until,
		EmergencyActive:    emergency != 0,
		EmergencyUntil:     emergUntil,
		ShieldsApplied:     applied != 0,
		ShieldsAppliedAt:   fromNullInt64(appliedNS),
	}, nil
}

// SetDailyUnlockedUntil records the end of the current unlock window.
func (r *SQLiteRepo) SetDailyUnlockedUntil(ctx context.Context, unix int64) error {
	if unix < 0 {
		return errors.New("negative unlock time")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE block_state
		SET daily_unlocked_until = ?
		WHERE id = 1`,
		unix,
	)
	return err
}

// SetEmergency toggles the emergency override. until=0 means open-ended.
func (r *SQLiteRepo) SetEmergency(ctx context.Context, active bool, until int64) error {
	if !active {
		until = 0
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE block_state
		SET emergency_active = ?, emergency_until = ?
		WHERE id = 1`,
		boolToInt(active), until,
	)
	return err
}

// SetShieldsApplied records the last evaluated shield state.
func (r *SQLiteRepo) SetShieldsApplied(ctx context.Context, applied bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE block_state
		SET shields_applied = ?, shields_applied_at = ?
		WHERE id = 1`,
		boolToInt(applied), toNullInt64(&at),
	)
	return err
}
