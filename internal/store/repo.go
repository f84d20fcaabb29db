package store

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/sobre/internal/domain"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// KV is a flat string key/value store.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DeviceRepo persists the state owned by the blocking capability.
type DeviceRepo interface {
	GetScheduleSettings(ctx context.Context) (domain.ScheduleSettings, error)
	SetScheduleSettings(ctx context.Context, s domain.ScheduleSettings) error
	GetBlockState(ctx context.Context) (domain.BlockState, error)
	SetDailyUnlockedUntil(ctx context.Context, unix int64) error
	SetEmergency(ctx context.Context, active bool, until int64) error
	SetShieldsApplied(ctx context.Context, applied bool, at time.Time) error
}

// Notification is a locally scheduled notification.
type Notification struct {
	ID        string
	Title     string
	Body      string
	Data      map[string]string
	FireAt    time.Time // UTC
	CreatedAt time.Time // UTC
}

// NotificationRepo stores scheduled local notifications.
type NotificationRepo interface {
	InsertNotification(ctx context.Context, n *Notification) error
	DeleteNotification(ctx context.Context, id string) error
	GetNotification(ctx context.Context, id string) (*Notification, error)
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	CountNotifications(ctx context.Context) (int, error)
}

// PendingRepo stores one-shot pending-action flags keyed by token.
type PendingRepo interface {
	SetPending(ctx context.Context, token string, at time.Time) error
	// TakePending deletes the flag and reports whether it existed. When
	// maxAge > 0 the flag is only taken if now-created <= maxAge; an older
	// flag is left in place.
	TakePending(ctx context.Context, token string, now time.Time, maxAge time.Duration) (bool, error)
}

// PushTarget is where pushes for a device key are delivered.
type PushTarget struct {
	DeviceKey string
	Provider  string // expo|telegram
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PushTargetRepo is the device registry used by the remote trigger path.
type PushTargetRepo interface {
	UpsertPushTarget(ctx context.Context, t *PushTarget, at time.Time) error
	GetPushTarget(ctx context.Context, deviceKey string) (*PushTarget, error)
	DeletePushTarget(ctx context.Context, deviceKey string) error
}
