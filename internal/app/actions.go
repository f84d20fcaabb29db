package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/notify"
	"github.com/ykvlv/sobre/internal/pendingaction"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/reminder"
	"github.com/ykvlv/sobre/internal/store"
)

// RouteRecorder is the navigator used outside a UI: it logs and remembers
// the last route it was asked to show.
type RouteRecorder struct {
	log *zap.Logger

	mu    sync.Mutex
	route string
}

func (r *RouteRecorder) Replace(_ context.Context, route string) error {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()
	r.log.Info("navigate", zap.String("route", route))
	return nil
}

// Route returns the last route, or "" when nothing navigated.
func (r *RouteRecorder) Route() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

// LaunchReport is what a simulated app foreground did.
type LaunchReport struct {
	Pending  pendingaction.Result
	Route    string
	Reminder reminder.Outcome
}

// Launch runs the foreground hooks in order: the shield-tap check, then the
// reminder ensure with a permission prompt.
func (a *App) Launch(ctx context.Context) (LaunchReport, error) {
	rep := LaunchReport{Pending: a.pending.Check(ctx)}
	rep.Route = a.nav.Route()
	out, err := a.reminder.EnsureDailyResetMorningReminderScheduled(ctx, reminder.Options{RequestPermission: true})
	rep.Reminder = out
	if err != nil {
		return rep, fmt.Errorf("ensure reminder: %w", err)
	}
	return rep, nil
}

// ErrUnknownLink is returned for URLs that map to no route.
var ErrUnknownLink = errors.New("unknown deep link")

// OpenURL handles a deep link the way a notification tap does: resolve it
// to a route and replace the current screen.
func (a *App) OpenURL(ctx context.Context, raw string) (string, error) {
	route, ok := domain.ResolveDeepLink(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLink, raw)
	}
	if err := a.nav.Replace(ctx, route); err != nil {
		return "", err
	}
	return route, nil
}

// EnsureReminder runs one ensure call.
func (a *App) EnsureReminder(ctx context.Context, requestPermission bool) (reminder.Outcome, error) {
	return a.reminder.EnsureDailyResetMorningReminderScheduled(ctx, reminder.Options{RequestPermission: requestPermission})
}

// CheckIn unlocks until the next reset and returns the window end.
func (a *App) CheckIn(ctx context.Context) (time.Time, error) {
	return a.service.CheckIn(ctx)
}

// Status is the persisted blocking configuration and state.
type Status struct {
	Settings domain.ScheduleSettings
	State    domain.BlockState
	Engaged  bool
	Reminder string // id of the live reminder, "" if none
}

func (a *App) Status(ctx context.Context) (Status, error) {
	settings, state, err := a.service.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	id, _, err := a.reminder.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Settings: settings,
		State:    state,
		Engaged:  domain.ShieldsEngaged(a.clock.Now(), settings, state),
		Reminder: id,
	}, nil
}

// UpdateSettings applies the given changes; nil leaves a field alone.
func (a *App) UpdateSettings(ctx context.Context, enabled *bool, resetTime *string) error {
	if resetTime != nil {
		if err := a.service.SetDailyResetTime(ctx, *resetTime); err != nil {
			return err
		}
	}
	if enabled != nil {
		if err := a.service.SetDailyEnabled(ctx, *enabled); err != nil {
			return err
		}
	}
	return nil
}

// StartEmergency lifts the shields for d; zero means until ended.
func (a *App) StartEmergency(ctx context.Context, d time.Duration) error {
	return a.service.StartEmergency(ctx, d)
}

func (a *App) EndEmergency(ctx context.Context) error {
	return a.service.EndEmergency(ctx)
}

// RecordShieldTap records that the user tapped the shield's primary button.
func (a *App) RecordShieldTap(ctx context.Context) error {
	if !a.platform.SupportsBlocking() {
		return fmt.Errorf("shield tap: platform %s has no shields", a.platform)
	}
	return a.bridge.Signal(ctx, pendingaction.DailyResetToken)
}

// RegisterDevice stores where this device's reminders are pushed.
func (a *App) RegisterDevice(ctx context.Context, provider, token string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch provider {
	case push.ProviderExpo, push.ProviderTelegram:
	default:
		return fmt.Errorf("%w: %q", push.ErrUnknownProvider, provider)
	}
	return a.repo.UpsertPushTarget(ctx, &store.PushTarget{
		DeviceKey: a.cfg.DeviceKey,
		Provider:  provider,
		Token:     token,
	}, a.clock.Now())
}

// SetPermission overrides the stored notification permission.
func (a *App) SetPermission(ctx context.Context, status string) error {
	s := notify.PermissionStatus(status)
	switch s {
	case notify.PermissionUndetermined, notify.PermissionGranted, notify.PermissionDenied:
	default:
		return fmt.Errorf("unknown permission status %q", status)
	}
	return a.center.SetPermission(ctx, s)
}
