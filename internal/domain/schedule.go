package domain

import "time"

// On returns the instant of the reset time on the calendar day of t, in t's
// location. Day arithmetic goes through time.Date so month/year rollovers
// and DST transitions stay correct.
func (r ResetTime) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), r.Hour, r.Minute, 0, 0, t.Location())
}

// onDayAfter returns the reset instant on the calendar day following t.
func (r ResetTime) onDayAfter(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, r.Hour, r.Minute, 0, 0, t.Location())
}

// NextBoundary returns the first reset instant strictly after now. This is
// the value a check-in writes into DailyUnlockedUntil.
func (r ResetTime) NextBoundary(now time.Time) time.Time {
	today := r.On(now)
	if today.After(now) {
		return today
	}
	return r.onDayAfter(now)
}

// TodayQualifies reports whether today's reset instant is still a useful
// reminder target: it must lie in the future, and the unlock window must not
// already reach past it (which would mean today's check-in is done).
//
// unlockedUntil is unix seconds; zero means no check-in has been recorded.
func TodayQualifies(now time.Time, r ResetTime, unlockedUntil int64) bool {
	today := r.On(now)
	if !today.After(now) {
		return false
	}
	if unlockedUntil > 0 && time.Unix(unlockedUntil, 0).After(today) {
		return false
	}
	return true
}

// ReminderTarget returns when the daily-reset reminder should fire.
// stateKnown=false means the block state could not be read; in that case
// only the "still in the future" half of the check applies.
func ReminderTarget(now time.Time, r ResetTime, unlockedUntil int64, stateKnown bool) time.Time {
	if !stateKnown {
		unlockedUntil = 0
	}
	if TodayQualifies(now, r, unlockedUntil) {
		return r.On(now)
	}
	return r.onDayAfter(now)
}
