// Package notify is the local notification service: permission state and
// date-triggered notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/store"
)

// PermissionStatus mirrors the OS notification permission states.
type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

// ErrNotFound is returned when cancelling an id that is not scheduled.
var ErrNotFound = errors.New("notification not found")

// Content is what the user sees, plus the routing payload.
type Content struct {
	Title string
	Body  string
	Data  map[string]string
}

// Center is the notification service the reminder depends on.
type Center interface {
	GetPermissions(ctx context.Context) (PermissionStatus, error)
	RequestPermissions(ctx context.Context) (PermissionStatus, error)
	// ScheduleAt schedules a date-triggered notification and returns its id.
	ScheduleAt(ctx context.Context, c Content, at time.Time) (string, error)
	CancelScheduled(ctx context.Context, id string) error
}

// Prompter asks the user for notification permission.
type Prompter interface {
	Prompt(ctx context.Context) (PermissionStatus, error)
}

// StaticPrompter answers every prompt with the same status.
type StaticPrompter PermissionStatus

func (p StaticPrompter) Prompt(context.Context) (PermissionStatus, error) {
	return PermissionStatus(p), nil
}

const permissionKey = "notifications.permission"

// LocalCenter keeps permission in a KV and schedules into the notification
// table, where the dispatcher picks them up.
type LocalCenter struct {
	kv       store.KV
	repo     store.NotificationRepo
	prompter Prompter
	clock    clock.Clock
	log      *zap.Logger
}

var _ Center = (*LocalCenter)(nil)

func NewLocalCenter(kv store.KV, repo store.NotificationRepo, prompter Prompter, c clock.Clock, log *zap.Logger) *LocalCenter {
	return &LocalCenter{kv: kv, repo: repo, prompter: prompter, clock: c, log: log}
}

func (c *LocalCenter) GetPermissions(ctx context.Context) (PermissionStatus, error) {
	v, ok, err := c.kv.Get(ctx, permissionKey)
	if err != nil {
		return "", fmt.Errorf("read permission: %w", err)
	}
	if !ok {
		return PermissionUndetermined, nil
	}
	return PermissionStatus(v), nil
}

// RequestPermissions prompts only while the status is undetermined; a prior
// answer is returned as is, like the OS does.
func (c *LocalCenter) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	cur, err := c.GetPermissions(ctx)
	if err != nil {
		return "", err
	}
	if cur != PermissionUndetermined {
		return cur, nil
	}
	if c.prompter == nil {
		return PermissionUndetermined, nil
	}
	got, err := c.prompter.Prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	if got == PermissionUndetermined {
		return got, nil
	}
	if err := c.kv.Set(ctx, permissionKey, string(got)); err != nil {
		return "", fmt.Errorf("save permission: %w", err)
	}
	c.log.Info("notification permission answered", zap.String("status", string(got)))
	return got, nil
}

// SetPermission overrides the stored status (e.g. the user flipped it in
// system settings).
func (c *LocalCenter) SetPermission(ctx context.Context, s PermissionStatus) error {
	return c.kv.Set(ctx, permissionKey, string(s))
}

func (c *LocalCenter) ScheduleAt(ctx context.Context, content Content, at time.Time) (string, error) {
	n := &store.Notification{
		ID:        uuid.NewString(),
		Title:     content.Title,
		Body:      content.Body,
		Data:      content.Data,
		FireAt:    at.UTC(),
		CreatedAt: c.clock.Now().UTC(),
	}
	if err := c.repo.InsertNotification(ctx, n); err != nil {
		return "", fmt.Errorf("schedule notification: %w", err)
	}
	return n.ID, nil
}

func (c *LocalCenter) CancelScheduled(ctx context.Context, id string) error {
	err := c.repo.DeleteNotification(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
