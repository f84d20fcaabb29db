package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the part of *tgbotapi.BotAPI the transport uses.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramTransport delivers pushes as chat messages. The provider token is
// the chat ID.
type TelegramTransport struct {
	bot MessageSender
}

func NewTelegramTransport(bot MessageSender) *TelegramTransport {
	return &TelegramTransport{bot: bot}
}

func (t *TelegramTransport) Provider() string { return ProviderTelegram }

func (t *TelegramTransport) Send(_ context.Context, token string, msg Message) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", token, err)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, FormatText(msg))); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// FormatText renders a push as plain chat text, with the deep link last.
func FormatText(msg Message) string {
	var b strings.Builder
	if msg.Title != "" {
		b.WriteString(msg.Title)
	}
	if msg.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(msg.Body)
	}
	if url := msg.Data["url"]; url != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(url)
	}
	return b.String()
}
