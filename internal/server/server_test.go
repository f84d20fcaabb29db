package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/store"
)

type fakeSender struct {
	calls []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, provider, token string, msg push.Message) error {
	f.calls = append(f.calls, provider+":"+token+":"+msg.Data["url"])
	return f.err
}

var now = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

func openRepo(t *testing.T) *store.SQLiteRepo {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sobre.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newHandler(t *testing.T) (*Handler, *store.SQLiteRepo, *fakeSender) {
	t.Helper()
	repo := openRepo(t)
	snd := &fakeSender{}
	return New(repo, snd, push.DailyReset("Locked", "Check in"), clock.NewFixed(now), "", zap.NewNop()), repo, snd
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return doAuth(h, method, path, body, "")
}

func doAuth(h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterThenSend(t *testing.T) {
	h, _, snd := newHandler(t)

	rec := do(h, http.MethodPost, "/v1/devices", `{"deviceKey":"dev1","token":"ExponentPushToken[a]"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(h, http.MethodPost, "/v1/daily-reset/send", `{"deviceKey":"dev1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: %d %s", rec.Code, rec.Body.String())
	}
	if len(snd.calls) != 1 || snd.calls[0] != "expo:ExponentPushToken[a]:sobre://daily-reset" {
		t.Fatalf("unexpected sends: %v", snd.calls)
	}
}

func TestSend_Errors(t *testing.T) {
	h, repo, snd := newHandler(t)

	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: want 400, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: want 400, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `{"deviceKey":"ghost"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device: want 404, got %d", rec.Code)
	}

	_ = repo.UpsertPushTarget(context.Background(), &store.PushTarget{DeviceKey: "dev1", Provider: push.ProviderExpo, Token: "ExponentPushToken[a]"}, now)
	snd.err = errors.New("upstream down")
	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `{"deviceKey":"dev1"}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("push failure: want 502, got %d", rec.Code)
	}

	snd.err = push.ErrDeviceNotRegistered
	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `{"deviceKey":"dev1"}`); rec.Code != http.StatusGone {
		t.Fatalf("unregistered: want 410, got %d", rec.Code)
	}
	if _, err := repo.GetPushTarget(context.Background(), "dev1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("stale target should be removed, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	h, _, _ := newHandler(t)
	if rec := do(h, http.MethodPost, "/v1/devices", `{"deviceKey":"dev1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing token: want 400, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/v1/devices", `{"deviceKey":"dev1","token":"x","provider":"fax"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad provider: want 400, got %d", rec.Code)
	}
}

func TestUnregisterAndHealthz(t *testing.T) {
	h, repo, _ := newHandler(t)
	_ = repo.UpsertPushTarget(context.Background(), &store.PushTarget{DeviceKey: "dev1", Provider: push.ProviderTelegram, Token: "42"}, now)

	if rec := do(h, http.MethodDelete, "/v1/devices/dev1", ""); rec.Code != http.StatusOK {
		t.Fatalf("unregister: want 200, got %d", rec.Code)
	}
	if _, err := repo.GetPushTarget(context.Background(), "dev1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("target should be gone, got %v", err)
	}
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: want 200, got %d", rec.Code)
	}
}

func TestRegister_StampsClockTime(t *testing.T) {
	h, repo, _ := newHandler(t)
	if rec := do(h, http.MethodPost, "/v1/devices", `{"deviceKey":"dev1","token":"ExponentPushToken[a]"}`); rec.Code != http.StatusOK {
		t.Fatalf("register: %d", rec.Code)
	}
	tgt, err := repo.GetPushTarget(context.Background(), "dev1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !tgt.CreatedAt.Equal(now) || !tgt.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps must come from the clock: %+v", tgt)
	}
}

func TestAPIToken(t *testing.T) {
	repo := openRepo(t)
	snd := &fakeSender{}
	h := New(repo, snd, push.DailyReset("Locked", "Check in"), clock.NewFixed(now), "s3cret", zap.NewNop())
	body := `{"deviceKey":"dev1","token":"ExponentPushToken[a]"}`

	if rec := do(h, http.MethodPost, "/v1/devices", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", rec.Code)
	}
	if rec := doAuth(h, http.MethodPost, "/v1/devices", body, "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: want 401, got %d", rec.Code)
	}
	if _, err := repo.GetPushTarget(context.Background(), "dev1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unauthorized request must not register, got %v", err)
	}
	if rec := doAuth(h, http.MethodPost, "/v1/devices", body, "Bearer s3cret"); rec.Code != http.StatusOK {
		t.Fatalf("good token: want 200, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz stays open, got %d", rec.Code)
	}
}

type failingDelete struct {
	*store.SQLiteRepo
}

func (failingDelete) DeletePushTarget(context.Context, string) error {
	return errors.New("disk I/O error")
}

func TestSend_UnregisteredLogsDeleteFailure(t *testing.T) {
	repo := openRepo(t)
	_ = repo.UpsertPushTarget(context.Background(), &store.PushTarget{DeviceKey: "dev1", Provider: push.ProviderExpo, Token: "ExponentPushToken[a]"}, now)
	core, logs := observer.New(zapcore.ErrorLevel)
	snd := &fakeSender{err: push.ErrDeviceNotRegistered}
	h := New(failingDelete{repo}, snd, push.DailyReset("Locked", "Check in"), clock.NewFixed(now), "", zap.New(core))

	if rec := do(h, http.MethodPost, "/v1/daily-reset/send", `{"deviceKey":"dev1"}`); rec.Code != http.StatusGone {
		t.Fatalf("want 410, got %d", rec.Code)
	}
	if logs.FilterMessage("DeletePushTarget failed").Len() != 1 {
		t.Fatalf("delete failure must be logged, got %v", logs.All())
	}
}
