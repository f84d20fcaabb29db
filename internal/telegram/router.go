package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingLink   = "await_link_device_key"
	pendingUnlink = "await_unlink_device_key"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot     push.MessageSender
	log     *zap.Logger
	targets store.PushTargetRepo
	clock   clock.Clock
	state   map[int64]string // chatID -> pending state
	mu      sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot push.MessageSender, log *zap.Logger, targets store.PushTargetRepo, c clock.Clock) *Router {
	return &Router{
		bot:     bot,
		log:     log,
		targets: targets,
		clock:   c,
		state:   make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		r.clearPending(chatID)
		r.sendText(chatID, startText)
	case strings.HasPrefix(text, "/link"):
		r.handleLink(ctx, chatID, commandArg(text))
	case strings.HasPrefix(text, "/unlink"):
		r.handleUnlink(ctx, chatID, commandArg(text))
	default:
		r.handleFreeForm(ctx, chatID, text)
	}
}

// commandArg returns the text after the command word.
func commandArg(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
