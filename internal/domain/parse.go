package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyResetTime   = errors.New("empty reset time")
	ErrInvalidResetTime = errors.New("invalid reset time")
)

// resetTimeRe accepts "H:mm" and "HH:mm" in 24h form.
var resetTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ResetTime is a wall-clock time of day (hour and minute) at which the
// daily window re-locks.
type ResetTime struct {
	Hour   int
	Minute int
}

// DefaultResetTime is used whenever the stored value is missing or unreadable.
var DefaultResetTime = ResetTime{Hour: 8, Minute: 0}

// ParseResetTime parses "HH:mm" (leading zero on the hour optional).
// String always formats zero-padded, so "7:05" normalises to "07:05";
// only zero-padded input round-trips unchanged.
func ParseResetTime(s string) (ResetTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ResetTime{}, ErrEmptyResetTime
	}
	m := resetTimeRe.FindStringSubmatch(s)
	if len(m) != 3 {
		return ResetTime{}, fmt.Errorf("%w: %q", ErrInvalidResetTime, s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	return ResetTime{Hour: h, Minute: mi}, nil
}

// ResetTimeOrDefault parses s and falls back to DefaultResetTime when s is
// not a valid reset time.
func ResetTimeOrDefault(s string) Fallback[ResetTime] {
	rt, err := ParseResetTime(s)
	if err != nil {
		return UseFallback(DefaultResetTime, err)
	}
	return Ok(rt)
}

// String formats the reset time as zero-padded HH:mm.
func (r ResetTime) String() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return loc, nil
}
