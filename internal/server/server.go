// Package server exposes the remote trigger: register a device's push
// target, and send it the daily-reset push on demand.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/store"
)

// Sender delivers a push to a provider token.
type Sender interface {
	Send(ctx context.Context, provider, token string, msg push.Message) error
}

// Handler serves the HTTP API.
type Handler struct {
	targets  store.PushTargetRepo
	sender   Sender
	message  push.Message
	clock    clock.Clock
	apiToken string
	log      *zap.Logger
	mux      *http.ServeMux
}

// New builds the handler. message is the daily-reset push sent on trigger.
// A non-empty apiToken is required as a bearer token on every /v1 route.
func New(targets store.PushTargetRepo, sender Sender, message push.Message, c clock.Clock, apiToken string, log *zap.Logger) *Handler {
	h := &Handler{
		targets:  targets,
		sender:   sender,
		message:  message,
		clock:    c,
		apiToken: apiToken,
		log:      log,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h.mux.HandleFunc("POST /v1/devices", h.authorized(h.registerDevice))
	h.mux.HandleFunc("DELETE /v1/devices/{deviceKey}", h.authorized(h.unregisterDevice))
	h.mux.HandleFunc("POST /v1/daily-reset/send", h.authorized(h.sendDailyReset))
	return h
}

func (h *Handler) authorized(next http.HandlerFunc) http.HandlerFunc {
	if h.apiToken == "" {
		return next
	}
	want := []byte("Bearer " + h.apiToken)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type registerRequest struct {
	DeviceKey string `json:"deviceKey"`
	Provider  string `json:"provider"`
	Token     string `json:"token"`
}

type sendRequest struct {
	DeviceKey string `json:"deviceKey"`
}

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	req.DeviceKey = strings.TrimSpace(req.DeviceKey)
	req.Token = strings.TrimSpace(req.Token)
	if req.Provider == "" {
		req.Provider = push.ProviderExpo
	}
	if req.DeviceKey == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "deviceKey and token are required")
		return
	}
	if req.Provider != push.ProviderExpo && req.Provider != push.ProviderTelegram {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	err := h.targets.UpsertPushTarget(r.Context(), &store.PushTarget{
		DeviceKey: req.DeviceKey,
		Provider:  req.Provider,
		Token:     req.Token,
	}, h.clock.Now())
	if err != nil {
		h.log.Error("UpsertPushTarget failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not register device")
		return
	}
	h.log.Info("device registered", zap.String("device", req.DeviceKey), zap.String("provider", req.Provider))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) unregisterDevice(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("deviceKey")
	if err := h.targets.DeletePushTarget(r.Context(), key); err != nil {
		h.log.Error("DeletePushTarget failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not unregister device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) sendDailyReset(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.DeviceKey)
	if key == "" {
		writeError(w, http.StatusBadRequest, "deviceKey is required")
		return
	}

	target, err := h.targets.GetPushTarget(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no push token registered for device")
		return
	}
	if err != nil {
		h.log.Error("GetPushTarget failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if err := h.sender.Send(r.Context(), target.Provider, target.Token, h.message); err != nil {
		h.log.Error("daily reset push failed", zap.Error(err), zap.String("device", key))
		if errors.Is(err, push.ErrDeviceNotRegistered) {
			if err := h.targets.DeletePushTarget(r.Context(), key); err != nil {
				h.log.Error("DeletePushTarget failed", zap.Error(err), zap.String("device", key))
			}
			writeError(w, http.StatusGone, "device no longer registered")
			return
		}
		writeError(w, http.StatusBadGateway, "push delivery failed")
		return
	}
	h.log.Info("daily reset push sent", zap.String("device", key), zap.String("provider", target.Provider))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
