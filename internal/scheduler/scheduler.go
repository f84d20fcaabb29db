package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/store"
)

// Sender delivers a push to a provider token. push.Registry implements it.
type Sender interface {
	Send(ctx context.Context, provider, token string, msg push.Message) error
}

// Rescheduler is called after due reminders were settled so the next one is
// queued.
type Rescheduler interface {
	Reschedule(ctx context.Context) error
}

// Scheduler periodically polls the DB and delivers due local notifications
// to this device's registered push target.
type Scheduler struct {
	repo      store.NotificationRepo
	targets   store.PushTargetRepo
	deviceKey string
	sender    Sender
	after     Rescheduler
	clock     clock.Clock
	log       *zap.Logger
	interval  time.Duration
}

func New(repo store.NotificationRepo, targets store.PushTargetRepo, deviceKey string, sender Sender, after Rescheduler, c clock.Clock, log *zap.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		repo:      repo,
		targets:   targets,
		deviceKey: deviceKey,
		sender:    sender,
		after:     after,
		clock:     c,
		log:       log,
		interval:  interval,
	}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one cycle: find due notifications, deliver, remove. It
// returns how many were delivered.
//
// A notification whose send failed for a transient reason is kept for the
// next tick. While any is kept, the reminder is not re-ensured: re-ensuring
// cancels the recorded reminder, which would be the kept one.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock.Now()

	due, err := s.repo.ListDueNotifications(ctx, now, 100)
	if err != nil {
		s.log.Error("ListDueNotifications failed", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	target, err := s.targets.GetPushTarget(ctx, s.deviceKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("GetPushTarget failed", zap.Error(err))
		return 0
	}

	delivered, kept := 0, 0
	for _, n := range due {
		if target == nil {
			// Nowhere to show it: the notification fires into the void, as
			// an OS notification would with alerts turned off.
			s.log.Warn("no push target for device; dropping notification",
				zap.String("device", s.deviceKey), zap.String("id", n.ID))
		} else {
			msg := push.Message{Title: n.Title, Body: n.Body, Data: n.Data}
			if err := s.sender.Send(ctx, target.Provider, target.Token, msg); err != nil {
				s.log.Error("send failed", zap.Error(err), zap.String("id", n.ID), zap.String("provider", target.Provider))
				if !errors.Is(err, push.ErrDeviceNotRegistered) {
					kept++
					continue
				}
			} else {
				delivered++
			}
		}

		if err := s.repo.DeleteNotification(ctx, n.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Error("DeleteNotification failed", zap.Error(err), zap.String("id", n.ID))
		}
	}

	if kept > 0 {
		s.log.Warn("delivery failed; retrying next tick", zap.Int("kept", kept))
		return delivered
	}
	if s.after != nil {
		if err := s.after.Reschedule(ctx); err != nil {
			s.log.Error("reschedule after delivery failed", zap.Error(err))
		}
	}
	return delivered
}
