// Package push delivers notifications to a registered device through a
// provider-specific transport.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/ykvlv/sobre/internal/domain"
)

// Provider names stored with each push target.
const (
	ProviderExpo     = "expo"
	ProviderTelegram = "telegram"
)

var (
	ErrUnknownProvider     = errors.New("unknown push provider")
	ErrDeviceNotRegistered = errors.New("device not registered with provider")
)

// Message is a provider-neutral push.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// DailyReset is the push the remote trigger sends; it shares the deep link
// contract with the local reminder.
func DailyReset(title, body string) Message {
	return Message{Title: title, Body: body, Data: domain.DailyResetPayload()}
}

// Transport sends a message to a provider token.
type Transport interface {
	Provider() string
	Send(ctx context.Context, token string, msg Message) error
}

// Registry picks a transport by provider name.
type Registry struct {
	transports map[string]Transport
}

func NewRegistry(ts ...Transport) *Registry {
	r := &Registry{transports: make(map[string]Transport)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Transport) {
	if t == nil {
		return
	}
	r.transports[t.Provider()] = t
}

// Send routes msg to the transport for provider.
func (r *Registry) Send(ctx context.Context, provider, token string, msg Message) error {
	t, ok := r.transports[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return t.Send(ctx, token, msg)
}

// Providers lists the registered provider names.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.transports))
	for p := range r.transports {
		out = append(out, p)
	}
	return out
}
