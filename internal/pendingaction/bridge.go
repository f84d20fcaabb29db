// Package pendingaction carries the one-shot "shield tapped" signal from the
// shield overlay to the app's next launch.
package pendingaction

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/store"
)

const (
	// DailyResetToken is raised when the user taps the shield's action button.
	DailyResetToken = "daily-reset"
	// DefaultMaxAge bounds how old a flag may be and still be acted upon.
	DefaultMaxAge = 15 * time.Second
)

var ErrInvalidMaxAge = errors.New("max age must be positive")

// Bridge is the minimal pending-action contract: take the flag if present.
type Bridge interface {
	Consume(ctx context.Context, token string) (bool, error)
}

// RecentBridge also supports age-bounded consumption. It returns true and
// clears the flag only if it exists and is no older than maxAge; otherwise
// it returns false and leaves everything as it was.
type RecentBridge interface {
	Bridge
	ConsumeIfRecent(ctx context.Context, token string, maxAge time.Duration) (bool, error)
}

// StoreBridge keeps flags in the local database. Flags are
// set-until-consumed-or-overwritten: nothing expires them.
type StoreBridge struct {
	repo  store.PendingRepo
	clock clock.Clock
}

var _ RecentBridge = (*StoreBridge)(nil)

func NewStoreBridge(repo store.PendingRepo, c clock.Clock) *StoreBridge {
	return &StoreBridge{repo: repo, clock: c}
}

// Signal raises token now. This is the shield side of the contract.
func (b *StoreBridge) Signal(ctx context.Context, token string) error {
	return b.repo.SetPending(ctx, token, b.clock.Now())
}

func (b *StoreBridge) Consume(ctx context.Context, token string) (bool, error) {
	return b.repo.TakePending(ctx, token, b.clock.Now(), 0)
}

func (b *StoreBridge) ConsumeIfRecent(ctx context.Context, token string, maxAge time.Duration) (bool, error) {
	if maxAge <= 0 {
		return false, ErrInvalidMaxAge
	}
	return b.repo.TakePending(ctx, token, b.clock.Now(), maxAge)
}

// consumeOnly hides ConsumeIfRecent, for hosts whose bridge predates it.
type consumeOnly struct{ b Bridge }

func (c consumeOnly) Consume(ctx context.Context, token string) (bool, error) {
	return c.b.Consume(ctx, token)
}

// WithoutRecency downgrades a bridge to the plain Consume contract.
func WithoutRecency(b Bridge) Bridge { return consumeOnly{b: b} }
