package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHourMinute extracts the hour and minute from a clock string. It
// accepts "HH:MM", "HH:MM:SS", a trailing zone marker, and full datetime
// strings in ISO or MySQL form.
func ParseHourMinute(value string) (int, int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, 0, fmt.Errorf("empty time value")
	}

	// Datetime forms: keep only the time part
	if idx := strings.IndexAny(v, "T "); idx >= 0 && strings.Contains(v[:idx], "-") {
		v = v[idx+1:]
	}
	// Strip trailing zone info ("Z", "+02:00")
	if idx := strings.IndexAny(v, "Z+"); idx >= 0 {
		v = v[:idx]
	}

	parts := strings.Split(v, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid time value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// ClockMinutes converts a clock string to minutes since midnight.
func ClockMinutes(value string) (int, error) {
	hour, minute, err := ParseHourMinute(value)
	if err != nil {
		return 0, err
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinutesOfDay returns the minutes elapsed since local midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// WeekdayIndex maps time.Weekday to the 0=Monday..6=Sunday convention
// used by schedule details.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateOf truncates a time to its date in the same location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether two times fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	return ya == yb && ma == mb && da == db
}

// InWindow reports whether t lies in the closed interval [start, end],
// all expressed in minutes since midnight.
func InWindow(t, start, end int) bool {
	return start <= t && t <= end
}

// BeforeWindow reports whether t lies in the half-open interval
// [start, end), all in minutes since midnight.
func BeforeWindow(t, start, end int) bool {
	return start <= t && t < end
}
