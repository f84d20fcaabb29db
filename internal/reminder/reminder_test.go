package reminder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/notify"
	"github.com/ykvlv/sobre/internal/store"
)

type fakeCenter struct {
	status    notify.PermissionStatus
	answer    notify.PermissionStatus
	prompts   int
	seq       int
	live      map[string]time.Time
	contents  map[string]notify.Content
	cancelled []string
	failSched error
	failCancl error
}

func newFakeCenter(status notify.PermissionStatus) *fakeCenter {
	return &fakeCenter{
		status:   status,
		answer:   notify.PermissionGranted,
		live:     map[string]time.Time{},
		contents: map[string]notify.Content{},
	}
}

func (f *fakeCenter) GetPermissions(context.Context) (notify.PermissionStatus, error) {
	return f.status, nil
}

func (f *fakeCenter) RequestPermissions(context.Context) (notify.PermissionStatus, error) {
	f.prompts++
	f.status = f.answer
	return f.status, nil
}

func (f *fakeCenter) ScheduleAt(_ context.Context, c notify.Content, at time.Time) (string, error) {
	if f.failSched != nil {
		return "", f.failSched
	}
	f.seq++
	id := fmt.Sprintf("n%d", f.seq)
	f.live[id] = at
	f.contents[id] = c
	return id, nil
}

func (f *fakeCenter) CancelScheduled(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	if f.failCancl != nil {
		return f.failCancl
	}
	if _, ok := f.live[id]; !ok {
		return notify.ErrNotFound
	}
	delete(f.live, id)
	return nil
}

type fakeCapability struct {
	settings    domain.ScheduleSettings
	state       domain.BlockState
	settingsErr error
	stateErr    error
}

func (f *fakeCapability) GetScheduleSettings(context.Context) (domain.ScheduleSettings, error) {
	return f.settings, f.settingsErr
}

func (f *fakeCapability) GetBlockState(context.Context) (domain.BlockState, error) {
	return f.state, f.stateErr
}

func (f *fakeCapability) SetDailyUnlockedUntil(_ context.Context, v int64) error {
	f.state.DailyUnlockedUntil = v
	return nil
}

func (f *fakeCapability) ApplyCurrentShieldsNow(context.Context) error { return nil }

type fixture struct {
	sched  *Scheduler
	center *fakeCenter
	cap    *fakeCapability
	kv     *store.MemoryKV
	clock  *clock.Fixed
}

func newFixture(t *testing.T, now time.Time, status notify.PermissionStatus) *fixture {
	t.Helper()
	f := &fixture{
		center: newFakeCenter(status),
		cap:    &fakeCapability{settings: domain.ScheduleSettings{DailyEnabled: true, DailyResetTime: "08:00"}},
		kv:     store.NewMemoryKV(),
		clock:  clock.NewFixed(now),
	}
	f.sched = New(domain.PlatformIOS, f.cap, f.center, f.kv, f.clock, Copy{}, zap.NewNop())
	return f
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestEnsure_SchedulesToday(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !out.Scheduled || !out.FireAt.Equal(at(2024, time.January, 1, 8, 0)) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	id, ok, _ := f.kv.Get(context.Background(), RecordKey)
	if !ok || id != out.NotificationID {
		t.Fatalf("record not persisted: %q ok=%v", id, ok)
	}
	c := f.center.contents[id]
	if c.Data["url"] != "sobre://daily-reset" || c.Data["type"] != "daily-reset-reminder" {
		t.Fatalf("unexpected payload: %+v", c.Data)
	}
	if c.Title != DefaultCopy.Title || c.Body != DefaultCopy.Body {
		t.Fatalf("unexpected copy: %+v", c)
	}
}

func TestEnsure_AfterResetSchedulesTomorrow(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 9, 0), notify.PermissionGranted)
	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if want := at(2024, time.January, 2, 8, 0); !out.FireAt.Equal(want) {
		t.Fatalf("want %s, got %s", want, out.FireAt)
	}
}

func TestEnsure_AlreadyCheckedInSchedulesTomorrow(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	f.cap.state.DailyUnlockedUntil = at(2024, time.January, 2, 8, 0).Unix()

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if want := at(2024, time.January, 2, 8, 0); !out.FireAt.Equal(want) {
		t.Fatalf("want %s, got %s", want, out.FireAt)
	}
}

func TestEnsure_BlockStateErrorFailsOpen(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	f.cap.state.DailyUnlockedUntil = at(2024, time.January, 2, 8, 0).Unix()
	f.cap.stateErr = errors.New("bridge exploded")

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if want := at(2024, time.January, 1, 8, 0); !out.FireAt.Equal(want) {
		t.Fatalf("want today %s, got %s", want, out.FireAt)
	}
}

func TestEnsure_SettingsFallbackMatchesDefault(t *testing.T) {
	now := at(2024, time.January, 1, 7, 0)
	cases := map[string]func(*fakeCapability){
		"read error":   func(c *fakeCapability) { c.settingsErr = errors.New("boom") },
		"invalid time": func(c *fakeCapability) { c.settings.DailyResetTime = "25:99" },
		"empty time":   func(c *fakeCapability) { c.settings.DailyResetTime = "" },
	}
	for name, mutate := range cases {
		f := newFixture(t, now, notify.PermissionGranted)
		f.cap.settings.DailyResetTime = "06:00"
		mutate(f.cap)

		out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
		if err != nil {
			t.Fatalf("%s: ensure: %v", name, err)
		}
		if !out.UsedDefault {
			t.Fatalf("%s: expected default to be used", name)
		}
		if want := at(2024, time.January, 1, 8, 0); !out.FireAt.Equal(want) {
			t.Fatalf("%s: want %s, got %s", name, want, out.FireAt)
		}
	}
}

func TestEnsure_NilCapabilityUsesDefaults(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	f.sched = New(domain.PlatformIOS, nil, f.center, f.kv, f.clock, Copy{}, zap.NewNop())

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !out.UsedDefault || !out.FireAt.Equal(at(2024, time.January, 1, 8, 0)) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestEnsure_ReplacesPreviousReminder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)

	first, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if second.Cancelled != first.NotificationID {
		t.Fatalf("second call must cancel %s, cancelled %q", first.NotificationID, second.Cancelled)
	}
	if len(f.center.cancelled) != 1 || f.center.cancelled[0] != first.NotificationID {
		t.Fatalf("unexpected cancels: %v", f.center.cancelled)
	}
	if len(f.center.live) != 1 {
		t.Fatalf("want exactly one live notification, got %d", len(f.center.live))
	}
	if _, ok := f.center.live[second.NotificationID]; !ok {
		t.Fatalf("live notification should be the second one")
	}
	id, _, _ := f.kv.Get(ctx, RecordKey)
	if id != second.NotificationID {
		t.Fatalf("record should hold %s, got %s", second.NotificationID, id)
	}
}

func TestEnsure_StaleRecordIsCleared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	_ = f.kv.Set(ctx, RecordKey, "gone")

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if out.Cancelled != "gone" || !out.Scheduled {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestEnsure_PermissionNotGrantedNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionUndetermined)
	f.center.live["old"] = at(2024, time.January, 1, 8, 0)
	_ = f.kv.Set(ctx, RecordKey, "old")

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{RequestPermission: false})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if out.Skipped != SkipPermission {
		t.Fatalf("want permission skip, got %+v", out)
	}
	if f.center.prompts != 0 {
		t.Fatalf("must not prompt")
	}
	if len(f.center.cancelled) != 0 {
		t.Fatalf("must not cancel existing reminder, cancelled %v", f.center.cancelled)
	}
	if id, ok, _ := f.kv.Get(ctx, RecordKey); !ok || id != "old" {
		t.Fatalf("record must be untouched, got %q ok=%v", id, ok)
	}
}

func TestEnsure_RequestPermission(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionUndetermined)
	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{RequestPermission: true})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if f.center.prompts != 1 || !out.Scheduled {
		t.Fatalf("want one prompt and a reminder, prompts=%d out=%+v", f.center.prompts, out)
	}

	f = newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionUndetermined)
	f.center.answer = notify.PermissionDenied
	out, err = f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{RequestPermission: true})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if f.center.prompts != 1 || out.Skipped != SkipPermission || len(f.center.live) != 0 {
		t.Fatalf("denied: prompts=%d out=%+v live=%d", f.center.prompts, out, len(f.center.live))
	}
}

func TestEnsure_UnsupportedPlatformIsNoop(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	f.sched.platform = domain.PlatformAndroid

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{RequestPermission: true})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if out.Skipped != SkipUnsupportedPlatform || len(f.center.live) != 0 || f.center.prompts != 0 {
		t.Fatalf("expected no-op, got %+v", out)
	}
}

func TestEnsure_ScheduleErrorPropagates(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	boom := errors.New("scheduler down")
	f.center.failSched = boom

	_, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("want schedule error, got %v", err)
	}
	if _, ok, _ := f.kv.Get(context.Background(), RecordKey); ok {
		t.Fatalf("no record should be written on failure")
	}
}

func TestEnsure_CancelErrorPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	_ = f.kv.Set(ctx, RecordKey, "old")
	boom := errors.New("cancel failed")
	f.center.failCancl = boom

	if _, err := f.sched.EnsureDailyResetMorningReminderScheduled(ctx, Options{}); !errors.Is(err, boom) {
		t.Fatalf("want cancel error, got %v", err)
	}
	if len(f.center.live) != 0 {
		t.Fatalf("nothing should be scheduled after a failed cancel")
	}
}

func TestEnsure_CustomCopy(t *testing.T) {
	f := newFixture(t, at(2024, time.January, 1, 7, 0), notify.PermissionGranted)
	f.sched = New(domain.PlatformIOS, f.cap, f.center, f.kv, f.clock, Copy{Title: "T", Body: "B"}, zap.NewNop())

	out, err := f.sched.EnsureDailyResetMorningReminderScheduled(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if c := f.center.contents[out.NotificationID]; c.Title != "T" || c.Body != "B" {
		t.Fatalf("unexpected copy: %+v", c)
	}
}
