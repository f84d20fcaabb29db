package blocking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/domain"
)

// Rescheduler re-derives the daily-reset reminder after state changes.
type Rescheduler interface {
	Reschedule(ctx context.Context) error
}

// Service implements the user actions that mutate the blocking state.
// Each action re-applies shields and then asks the reminder to reschedule;
// reminder failures are logged and never undo the action.
type Service struct {
	ctl      Controller
	clock    clock.Clock
	log      *zap.Logger
	reminder Rescheduler
}

func NewService(ctl Controller, c clock.Clock, log *zap.Logger, reminder Rescheduler) *Service {
	return &Service{ctl: ctl, clock: c, log: log, reminder: reminder}
}

// CheckIn unlocks apps until the next reset boundary and returns it.
// The reset time is read with the same 08:00 fallback the reminder uses.
func (s *Service) CheckIn(ctx context.Context) (time.Time, error) {
	rt := s.resetTime(ctx)
	now := s.clock.Now()
	until := rt.NextBoundary(now)

	if err := s.ctl.SetDailyUnlockedUntil(ctx, until.Unix()); err != nil {
		return time.Time{}, fmt.Errorf("set unlocked until: %w", err)
	}
	if err := s.ctl.ApplyCurrentShieldsNow(ctx); err != nil {
		return time.Time{}, fmt.Errorf("apply shields: %w", err)
	}
	s.log.Info("checked in", zap.Time("unlocked_until", until.UTC()))
	s.reschedule(ctx)
	return until, nil
}

// SetDailyEnabled toggles daily blocking.
func (s *Service) SetDailyEnabled(ctx context.Context, enabled bool) error {
	settings, err := s.ctl.GetScheduleSettings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	settings.DailyEnabled = enabled
	return s.saveSettings(ctx, settings)
}

// SetDailyResetTime changes the reset boundary. Invalid values are rejected.
func (s *Service) SetDailyResetTime(ctx context.Context, hhmm string) error {
	rt, err := domain.ParseResetTime(hhmm)
	if err != nil {
		return err
	}
	settings, err := s.ctl.GetScheduleSettings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	settings.DailyResetTime = rt.String()
	return s.saveSettings(ctx, settings)
}

// StartEmergency lifts the shields for d (d <= 0 means until EndEmergency).
func (s *Service) StartEmergency(ctx context.Context, d time.Duration) error {
	until := emergencyUntil(s.clock.Now(), d)
	if err := s.ctl.SetEmergency(ctx, true, until); err != nil {
		return fmt.Errorf("start emergency: %w", err)
	}
	s.log.Info("emergency unlock started", zap.Duration("for", d))
	return s.ctl.ApplyCurrentShieldsNow(ctx)
}

// EndEmergency restores normal shield evaluation.
func (s *Service) EndEmergency(ctx context.Context) error {
	if err := s.ctl.SetEmergency(ctx, false, 0); err != nil {
		return fmt.Errorf("end emergency: %w", err)
	}
	s.log.Info("emergency unlock ended")
	return s.ctl.ApplyCurrentShieldsNow(ctx)
}

// Status returns the current settings and block state.
func (s *Service) Status(ctx context.Context) (domain.ScheduleSettings, domain.BlockState, error) {
	settings, err := s.ctl.GetScheduleSettings(ctx)
	if err != nil {
		return domain.ScheduleSettings{}, domain.BlockState{}, err
	}
	state, err := s.ctl.GetBlockState(ctx)
	if err != nil {
		return domain.ScheduleSettings{}, domain.BlockState{}, err
	}
	return settings, state, nil
}

func (s *Service) saveSettings(ctx context.Context, settings domain.ScheduleSettings) error {
	if err := s.ctl.SetScheduleSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := s.ctl.ApplyCurrentShieldsNow(ctx); err != nil {
		return fmt.Errorf("apply shields: %w", err)
	}
	s.reschedule(ctx)
	return nil
}

func (s *Service) resetTime(ctx context.Context) domain.ResetTime {
	settings, err := s.ctl.GetScheduleSettings(ctx)
	if err != nil {
		s.log.Warn("read settings failed, using default reset time", zap.Error(err))
		return domain.DefaultResetTime
	}
	res := domain.ResetTimeOrDefault(settings.DailyResetTime)
	if res.UsedFallback() {
		s.log.Warn("invalid reset time, using default", zap.Error(res.Cause))
	}
	return res.Value
}

func (s *Service) reschedule(ctx context.Context) {
	if s.reminder == nil {
		return
	}
	if err := s.reminder.Reschedule(ctx); err != nil {
		s.log.Error("reschedule reminder failed", zap.Error(err))
	}
}
