package telegram

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/store"
)

const maxDeviceKeyLen = 128

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

// --- Link flow ---

func (r *Router) handleLink(ctx context.Context, chatID int64, key string) {
	if key == "" {
		r.sendText(chatID, askDeviceKeyText)
		r.setPending(chatID, pendingLink)
		return
	}
	r.link(ctx, chatID, key)
}

// link refuses keys that already push somewhere else; the owner has to
// unlink first.
func (r *Router) link(ctx context.Context, chatID int64, key string) {
	if !validDeviceKey(key) {
		r.sendText(chatID, invalidKeyText)
		return
	}
	existing, err := r.targets.GetPushTarget(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Error("lookup device failed", zap.Error(err))
		r.sendText(chatID, "Could not link device. Please try again later.")
		return
	}
	if existing != nil && !ownedBy(existing, chatID) {
		r.log.Warn("link refused: device already linked elsewhere", zap.String("device", key), zap.Int64("chatID", chatID))
		r.sendText(chatID, alreadyLinkedText)
		return
	}
	err = r.targets.UpsertPushTarget(ctx, &store.PushTarget{
		DeviceKey: key,
		Provider:  push.ProviderTelegram,
		Token:     strconv.FormatInt(chatID, 10),
	}, r.clock.Now())
	if err != nil {
		r.log.Error("link device failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not link device. Please try again later.")
		return
	}
	r.log.Info("device linked to chat", zap.String("device", key), zap.Int64("chatID", chatID))
	r.sendText(chatID, linkedText)
}

// --- Unlink flow ---

func (r *Router) handleUnlink(ctx context.Context, chatID int64, key string) {
	if key == "" {
		r.sendText(chatID, askDeviceKeyText)
		r.setPending(chatID, pendingUnlink)
		return
	}
	r.unlink(ctx, chatID, key)
}

// unlink only removes a target that points at this chat.
func (r *Router) unlink(ctx context.Context, chatID int64, key string) {
	t, err := r.targets.GetPushTarget(ctx, key)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !ownedBy(t, chatID)) {
		r.sendText(chatID, notLinkedText)
		return
	}
	if err != nil {
		r.log.Error("lookup device failed", zap.Error(err))
		r.sendText(chatID, "Could not unlink device.")
		return
	}
	if err := r.targets.DeletePushTarget(ctx, key); err != nil {
		r.log.Error("unlink device failed", zap.Error(err))
		r.sendText(chatID, "Could not unlink device.")
		return
	}
	r.sendText(chatID, unlinkedText)
}

// --- Free-form dispatcher ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingLink:
		r.clearPending(chatID)
		r.link(ctx, chatID, text)
	case pendingUnlink:
		r.clearPending(chatID)
		r.unlink(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}

func ownedBy(t *store.PushTarget, chatID int64) bool {
	return t.Provider == push.ProviderTelegram && t.Token == strconv.FormatInt(chatID, 10)
}

func validDeviceKey(key string) bool {
	if key == "" || len(key) > maxDeviceKeyLen {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
