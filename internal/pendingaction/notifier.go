package pendingaction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/blocking"
	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/launch"
)

// Navigator replaces the current screen with route.
type Navigator interface {
	Replace(ctx context.Context, route string) error
}

// Result is what a launch check ended up doing.
type Result string

const (
	ResultAlreadyRan        Result = "already_ran"
	ResultBridgeUnavailable Result = "bridge_unavailable"
	ResultNothingPending    Result = "nothing_pending"
	ResultBridgeError       Result = "bridge_error"
	ResultCapabilityMissing Result = "capability_missing"
	ResultNavigationFailed  Result = "navigation_failed"
	ResultNavigated         Result = "navigated"
)

const (
	onceCheck         = "pendingaction.check"
	onceMissingBridge = "pendingaction.bridge_missing"
	onceNoRecency     = "pendingaction.no_recency"
)

// Notifier runs the launch-time shield-tap check.
type Notifier struct {
	lc       *launch.Context
	bridge   Bridge
	blocking blocking.Capability
	nav      Navigator
	maxAge   time.Duration
	log      *zap.Logger
}

// NewNotifier builds the check. bridge and capability may be nil when the
// host lacks them; the check then degrades instead of failing.
func NewNotifier(lc *launch.Context, bridge Bridge, capability blocking.Capability, nav Navigator, maxAge time.Duration, log *zap.Logger) *Notifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Notifier{
		lc:       lc,
		bridge:   bridge,
		blocking: capability,
		nav:      nav,
		maxAge:   maxAge,
		log:      log,
	}
}

// Check consumes a fresh daily-reset flag and routes to check-in. It runs
// at most once per launch context; later calls return ResultAlreadyRan.
// It never returns an error: every failure is logged and reported as a
// Result.
func (n *Notifier) Check(ctx context.Context) Result {
	if !n.lc.FirstTime(onceCheck) {
		return ResultAlreadyRan
	}

	if n.bridge == nil {
		if n.lc.FirstTime(onceMissingBridge) {
			n.log.Info("pending action bridge unavailable; skipping shield tap check")
		}
		return ResultBridgeUnavailable
	}

	consumed, err := n.consume(ctx)
	if err != nil {
		n.log.Warn("consume pending action failed", zap.Error(err))
		return ResultBridgeError
	}
	if !consumed {
		return ResultNothingPending
	}

	if n.blocking == nil {
		n.log.Warn("pending action consumed but blocking capability is missing; not navigating")
		return ResultCapabilityMissing
	}

	if err := n.nav.Replace(ctx, domain.CheckInRoute); err != nil {
		n.log.Error("navigate to check-in failed", zap.Error(err))
		return ResultNavigationFailed
	}
	n.log.Info("shield tap routed to check-in", zap.String("route", domain.CheckInRoute))
	return ResultNavigated
}

func (n *Notifier) consume(ctx context.Context) (bool, error) {
	if rb, ok := n.bridge.(RecentBridge); ok {
		return rb.ConsumeIfRecent(ctx, DailyResetToken, n.maxAge)
	}
	if n.lc.FirstTime(onceNoRecency) {
		n.log.Info("pending action bridge lacks recency check; consuming unconditionally")
	}
	return n.bridge.Consume(ctx, DailyResetToken)
}
