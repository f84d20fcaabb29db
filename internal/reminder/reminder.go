// Package reminder keeps exactly one local notification scheduled for the
// next daily reset.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/blocking"
	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/notify"
	"github.com/ykvlv/sobre/internal/store"
)

// RecordKey holds the id of the live reminder as a plain string.
const RecordKey = "dailyResetReminder.notificationId"

var errCapabilityUnavailable = errors.New("blocking capability unavailable")

// Skip reasons reported in Outcome.
const (
	SkipUnsupportedPlatform = "unsupported_platform"
	SkipPermission          = "permission_not_granted"
)

// Options controls a single ensure call.
type Options struct {
	// RequestPermission prompts for notification permission when it has not
	// been granted yet.
	RequestPermission bool
}

// Copy is the fixed reminder text.
type Copy struct {
	Title string
	Body  string
}

var DefaultCopy = Copy{
	Title: "Your apps are locked again",
	Body:  "A new day started. Check in to unlock your apps.",
}

// Outcome describes what an ensure call did.
type Outcome struct {
	Scheduled      bool
	NotificationID string
	FireAt         time.Time
	Cancelled      string // id of the replaced reminder, if any
	Skipped        string // non-empty when nothing was touched
	UsedDefault    bool   // reset time fell back to the default
}

// Scheduler owns the reminder record.
//
// There is no lock: two overlapping ensure calls can each cancel the same
// old id and both create a new one, leaving an orphan. Sequential calls
// (the normal case: foreground hook, then check-in) always replace.
type Scheduler struct {
	platform domain.Platform
	blocking blocking.Capability
	center   notify.Center
	kv       store.KV
	clock    clock.Clock
	text     Copy
	log      *zap.Logger
}

func New(platform domain.Platform, capability blocking.Capability, center notify.Center, kv store.KV, c clock.Clock, text Copy, log *zap.Logger) *Scheduler {
	if text.Title == "" && text.Body == "" {
		text = DefaultCopy
	}
	return &Scheduler{
		platform: platform,
		blocking: capability,
		center:   center,
		kv:       kv,
		clock:    c,
		text:     text,
		log:      log,
	}
}

// EnsureDailyResetMorningReminderScheduled replaces any existing reminder
// with one that fires at the next useful reset instant.
//
// Reading the blocking state never fails the call: the reset time falls back
// to 08:00 and an unreadable unlock window counts as "not checked in".
// Permission, cancel and schedule errors are returned.
func (s *Scheduler) EnsureDailyResetMorningReminderScheduled(ctx context.Context, opts Options) (Outcome, error) {
	if !s.platform.SupportsBlocking() {
		return Outcome{Skipped: SkipUnsupportedPlatform}, nil
	}

	granted, err := s.permissionGranted(ctx, opts.RequestPermission)
	if err != nil {
		return Outcome{}, err
	}
	if !granted {
		s.log.Debug("reminder skipped: notification permission not granted")
		return Outcome{Skipped: SkipPermission}, nil
	}

	rt := s.readResetTime(ctx)

	cancelled, err := s.cancelExisting(ctx)
	if err != nil {
		return Outcome{}, err
	}

	now := s.clock.Now()
	unlockedUntil, known := s.readUnlockedUntil(ctx)
	fireAt := domain.ReminderTarget(now, rt.Value, unlockedUntil, known)

	id, err := s.center.ScheduleAt(ctx, notify.Content{
		Title: s.text.Title,
		Body:  s.text.Body,
		Data:  domain.DailyResetPayload(),
	}, fireAt)
	if err != nil {
		return Outcome{}, fmt.Errorf("schedule reminder: %w", err)
	}
	if err := s.kv.Set(ctx, RecordKey, id); err != nil {
		return Outcome{}, fmt.Errorf("save reminder id: %w", err)
	}

	s.log.Info("daily reset reminder scheduled",
		zap.String("id", id),
		zap.Time("fire_at", fireAt.UTC()),
		zap.String("reset_time", rt.Value.String()),
		zap.String("replaced", cancelled),
	)
	return Outcome{
		Scheduled:      true,
		NotificationID: id,
		FireAt:         fireAt,
		Cancelled:      cancelled,
		UsedDefault:    rt.UsedFallback(),
	}, nil
}

// Reschedule is the non-prompting variant used after state changes.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	_, err := s.EnsureDailyResetMorningReminderScheduled(ctx, Options{})
	return err
}

// Current returns the stored reminder id, if any.
func (s *Scheduler) Current(ctx context.Context) (string, bool, error) {
	return s.kv.Get(ctx, RecordKey)
}

func (s *Scheduler) permissionGranted(ctx context.Context, request bool) (bool, error) {
	status, err := s.center.GetPermissions(ctx)
	if err != nil {
		return false, fmt.Errorf("get permissions: %w", err)
	}
	if status == notify.PermissionGranted {
		return true, nil
	}
	if !request {
		return false, nil
	}
	status, err = s.center.RequestPermissions(ctx)
	if err != nil {
		return false, fmt.Errorf("request permissions: %w", err)
	}
	return status == notify.PermissionGranted, nil
}

func (s *Scheduler) readResetTime(ctx context.Context) domain.Fallback[domain.ResetTime] {
	if s.blocking == nil {
		return domain.UseFallback(domain.DefaultResetTime, errCapabilityUnavailable)
	}
	settings, err := s.blocking.GetScheduleSettings(ctx)
	if err != nil {
		s.log.Warn("read schedule settings failed, using default reset time", zap.Error(err))
		return domain.UseFallback(domain.DefaultResetTime, err)
	}
	res := domain.ResetTimeOrDefault(settings.DailyResetTime)
	if res.UsedFallback() {
		s.log.Warn("invalid reset time, using default", zap.Error(res.Cause))
	}
	return res
}

// readUnlockedUntil returns the unlock window end and whether it is known.
func (s *Scheduler) readUnlockedUntil(ctx context.Context) (int64, bool) {
	if s.blocking == nil {
		return 0, false
	}
	st, err := s.blocking.GetBlockState(ctx)
	if err != nil {
		s.log.Warn("read block state failed, assuming today qualifies", zap.Error(err))
		return 0, false
	}
	return st.DailyUnlockedUntil, true
}

// cancelExisting cancels the stored reminder and clears the record. A record
// whose notification is already gone is just cleared.
func (s *Scheduler) cancelExisting(ctx context.Context) (string, error) {
	id, ok, err := s.kv.Get(ctx, RecordKey)
	if err != nil {
		return "", fmt.Errorf("read reminder id: %w", err)
	}
	if !ok || id == "" {
		return "", nil
	}
	if err := s.center.CancelScheduled(ctx, id); err != nil && !errors.Is(err, notify.ErrNotFound) {
		return "", fmt.Errorf("cancel reminder %s: %w", id, err)
	}
	if err := s.kv.Delete(ctx, RecordKey); err != nil {
		return "", fmt.Errorf("clear reminder id: %w", err)
	}
	return id, nil
}
