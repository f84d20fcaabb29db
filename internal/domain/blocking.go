package domain

import "time"

// ScheduleSettings is the daily blocking configuration held by the device's
// blocking capability.
type ScheduleSettings struct {
	DailyEnabled   bool
	DailyResetTime string // HH:mm
}

// BlockState is the unlock window plus the emergency override.
type BlockState struct {
	DailyUnlockedUntil int64 // unix seconds, 0 = never checked in
	EmergencyActive    bool
	EmergencyUntil     int64 // unix seconds, 0 = open-ended
	ShieldsApplied     bool
	ShieldsAppliedAt   *time.Time // UTC, nullable
}

// EmergencyInEffect reports whether an emergency unlock is currently lifting
// the shields.
func (s BlockState) EmergencyInEffect(now time.Time) bool {
	if !s.EmergencyActive {
		return false
	}
	if s.EmergencyUntil == 0 {
		return true
	}
	return now.Before(time.Unix(s.EmergencyUntil, 0))
}

// UnlockedAt reports whether the daily unlock window covers now.
func (s BlockState) UnlockedAt(now time.Time) bool {
	return s.DailyUnlockedUntil > 0 && now.Before(time.Unix(s.DailyUnlockedUntil, 0))
}

// ShieldsEngaged decides whether the shields should be up at now.
func ShieldsEngaged(now time.Time, settings ScheduleSettings, state BlockState) bool {
	if !settings.DailyEnabled {
		return false
	}
	if state.EmergencyInEffect(now) {
		return false
	}
	return !state.UnlockedAt(now)
}

// Platform is the host OS of the app.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// SupportsBlocking reports whether the platform has the device-level
// content blocking capability. Only iOS does.
func (p Platform) SupportsBlocking() bool {
	return p == PlatformIOS
}

// Deep link contract shared by local reminders and remote pushes.
const (
	DailyResetURL          = "sobre://daily-reset"
	DailyResetReminderType = "daily-reset-reminder"
	CheckInRoute           = "/daily-reset"
)

// DailyResetPayload is the data attached to every daily-reset notification.
func DailyResetPayload() map[string]string {
	return map[string]string{
		"url":  DailyResetURL,
		"type": DailyResetReminderType,
	}
}
