package models

import "time"

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// activeAt applies the activation-window rules shared by sites, schedules
// and users: when a window is set the dates override the active flag; with
// only a start the entity activates on that date, with only an end it
// deactivates after it. Without any window the flag decides.
func activeAt(isActive bool, start, end *time.Time, day time.Time) bool {
	d := dateOf(day)
	if start == nil && end == nil {
		return isActive
	}
	if start != nil && end == nil {
		return !d.Before(dateOf(*start))
	}
	if start == nil && end != nil {
		return !d.After(dateOf(*end))
	}
	return !d.Before(dateOf(*start)) && !d.After(dateOf(*end))
}

// ActiveAt reports whether the site is active on the given local date.
func (s *Site) ActiveAt(day time.Time) bool {
	return activeAt(s.IsActive, s.ActivationStart, s.ActivationEnd, day)
}

// ActiveAt reports whether the schedule is active on the given local date.
func (sc *Schedule) ActiveAt(day time.Time) bool {
	return activeAt(sc.IsActive, sc.ActivationStart, sc.ActivationEnd, day)
}

// ActiveAt reports whether the user is active on the given local date.
func (u *User) ActiveAt(day time.Time) bool {
	return activeAt(u.IsActive, u.ActivationStart, u.ActivationEnd, day)
}
