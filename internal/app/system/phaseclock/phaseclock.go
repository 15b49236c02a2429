// Package phaseclock computes the countdown phase of a fixed event window.
// Evaluation is a pure function of the wall-clock instant, so a clock that
// misses ticks corrects itself on the next one.
package phaseclock

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when the event start is not before its end.
var ErrInvalidWindow = errors.New("phaseclock: event start must be before event end")

// Phase is the position of an instant relative to the event window.
type Phase int

const (
	Before Phase = iota
	During
	After
)

func (p Phase) String() string {
	switch p {
	case Before:
		return "before"
	case During:
		return "during"
	case After:
		return "after"
	}
	return "unknown"
}

// State is the evaluated phase. Remaining is the time until the next boundary
// and is zero once the event has ended.
type State struct {
	Phase     Phase
	Remaining time.Duration
}

// Clock holds the two fixed instants of the event.
type Clock struct {
	start time.Time
	end   time.Time
}

// New returns a clock for the window [start, end].
func New(start, end time.Time) (Clock, error) {
	if !start.Before(end) {
		return Clock{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Clock{start: start, end: end}, nil
}

// Start returns the event start.
func (c Clock) Start() time.Time { return c.start }

// End returns the event end.
func (c Clock) End() time.Time { return c.end }

// Evaluate returns the phase at now. Both boundaries belong to the event.
func (c Clock) Evaluate(now time.Time) State {
	switch {
	case now.Before(c.start):
		return State{Phase: Before, Remaining: c.start.Sub(now)}
	case !now.After(c.end):
		return State{Phase: During, Remaining: c.end.Sub(now)}
	default:
		return State{Phase: After}
	}
}

// Text renders the headline and sub-line shown in the page header.
func (s State) Text() (headline, subline string) {
	switch s.Phase {
	case Before:
		d, h, m, sec := split(s.Remaining)
		return fmt.Sprintf("Event Starts In: %d days, %02d hours, %02d minutes, %02d seconds", d, h, m, sec), ""
	case During:
		_, h, m, sec := split(s.Remaining)
		return "Event Started!", fmt.Sprintf("Event Ends In: %02d hours, %02d minutes, %02d seconds", h, m, sec)
	default:
		return "Event Ended!", ""
	}
}

func split(d time.Duration) (days, hours, minutes, seconds int64) {
	total := int64(d / time.Second)
	days = total / 86400
	hours = total % 86400 / 3600
	minutes = total % 3600 / 60
	seconds = total % 60
	return
}
