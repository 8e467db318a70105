// Package schedule implements the daily-window and next-run arithmetic for
// the email dispatch worker. All functions are pure: "now" is an explicit
// argument and no I/O happens here.
//
// Windows are same-day clock intervals ("09:00" to "17:00"). A window whose
// end precedes its start never matches; overnight windows are deliberately
// not modelled.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Units accepted for the dispatch interval.
const (
	UnitMinutes = "minutes"
	UnitHours   = "hours"
)

// ParseClock parses an "HH:MM" clock time into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("schedule: invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// IsActive reports whether now falls inside the [start, end] window,
// inclusive at both ends. Comparison is done in minutes since midnight in
// now's location, so seconds within the current minute do not matter.
func IsActive(now time.Time, start, end string) (bool, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return false, err
	}
	nowMin := now.Hour()*60 + now.Minute()
	return nowMin >= startMin && nowMin <= endMin, nil
}

// NextRun computes the next dispatch instant for a window anchored at start,
// stepping in interval×unit increments.
//
// Before the window it is today's start; inside the window it is the first
// step strictly after now that still falls on or before end; after the
// window (or when no step within it remains) it is tomorrow's start.
func NextRun(now time.Time, start, end string, interval int, unit string) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, fmt.Errorf("schedule: interval must be positive, got %d", interval)
	}

	step, err := intervalDuration(interval, unit)
	if err != nil {
		return time.Time{}, err
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return time.Time{}, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return time.Time{}, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWindow := midnight.Add(time.Duration(startMin) * time.Minute)
	endOfWindow := midnight.Add(time.Duration(endMin) * time.Minute)

	if now.Before(startOfWindow) {
		return startOfWindow, nil
	}

	if !now.After(endOfWindow) {
		// Advance from the window start until the first step strictly
		// after now. A step landing exactly on now is not selected.
		candidate := startOfWindow
		for !candidate.After(now) {
			candidate = candidate.Add(step)
		}
		if !candidate.After(endOfWindow) {
			return candidate, nil
		}
	}

	// Past the window, or no step left inside it: tomorrow's start.
	return startOfWindow.AddDate(0, 0, 1), nil
}

// intervalDuration converts interval+unit into a time.Duration.
func intervalDuration(interval int, unit string) (time.Duration, error) {
	switch unit {
	case UnitHours:
		return time.Duration(interval) * time.Hour, nil
	case UnitMinutes:
		return time.Duration(interval) * time.Minute, nil
	default:
		return 0, fmt.Errorf("schedule: unknown interval unit %q", unit)
	}
}
