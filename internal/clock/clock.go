// Package clock lets components take "now" as a dependency so day-boundary
// logic can be tested at fixed instants.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real returns the system time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns T. Tests move it with Advance.
type Fixed struct {
	T time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// InLocation wraps c so every reading is expressed in loc.
func InLocation(c Clock, loc *time.Location) Clock {
	return located{c: c, loc: loc}
}

type located struct {
	c   Clock
	loc *time.Location
}

func (l located) Now() time.Time { return l.c.Now().In(l.loc) }
