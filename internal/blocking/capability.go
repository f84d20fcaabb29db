// Package blocking models the device-level content blocking capability and
// the user actions that drive it (check-in, settings, emergency unlock).
package blocking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/store"
)

// Capability is the contract the reminder core reads from the blocking module.
type Capability interface {
	GetScheduleSettings(ctx context.Context) (domain.ScheduleSettings, error)
	GetBlockState(ctx context.Context) (domain.BlockState, error)
	SetDailyUnlockedUntil(ctx context.Context, epochSeconds int64) error
	ApplyCurrentShieldsNow(ctx context.Context) error
}

// Controller adds the setters used by the settings screen.
type Controller interface {
	Capability
	SetScheduleSettings(ctx context.Context, s domain.ScheduleSettings) error
	SetEmergency(ctx context.Context, active bool, until int64) error
}

// Local is a Controller whose state lives in the local database. It stands
// in for the OS shield: applying shields records the evaluated state.
type Local struct {
	repo  store.DeviceRepo
	clock clock.Clock
	log   *zap.Logger
}

var _ Controller = (*Local)(nil)

func NewLocal(repo store.DeviceRepo, c clock.Clock, log *zap.Logger) *Local {
	return &Local{repo: repo, clock: c, log: log}
}

func (l *Local) GetScheduleSettings(ctx context.Context) (domain.ScheduleSettings, error) {
	return l.repo.GetScheduleSettings(ctx)
}

func (l *Local) SetScheduleSettings(ctx context.Context, s domain.ScheduleSettings) error {
	return l.repo.SetScheduleSettings(ctx, s)
}

func (l *Local) GetBlockState(ctx context.Context) (domain.BlockState, error) {
	return l.repo.GetBlockState(ctx)
}

func (l *Local) SetDailyUnlockedUntil(ctx context.Context, epochSeconds int64) error {
	return l.repo.SetDailyUnlockedUntil(ctx, epochSeconds)
}

func (l *Local) SetEmergency(ctx context.Context, active bool, until int64) error {
	return l.repo.SetEmergency(ctx, active, until)
}

// ApplyCurrentShieldsNow evaluates settings and block state at the current
// instant and records whether shields are up.
func (l *Local) ApplyCurrentShieldsNow(ctx context.Context) error {
	settings, err := l.repo.GetScheduleSettings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	state, err := l.repo.GetBlockState(ctx)
	if err != nil {
		return fmt.Errorf("read block state: %w", err)
	}
	now := l.clock.Now()
	engaged := domain.ShieldsEngaged(now, settings, state)
	if err := l.repo.SetShieldsApplied(ctx, engaged, now); err != nil {
		return err
	}
	if engaged != state.ShieldsApplied {
		l.log.Info("shields changed",
			zap.Bool("engaged", engaged),
			zap.Time("at", now.UTC()),
		)
	}
	return nil
}

// emergencyUntil converts a duration into the stored unix seconds; zero
// duration means open-ended.
func emergencyUntil(now time.Time, d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return now.Add(d).Unix()
}
