package core

import (
	"fmt"
	"time"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sameDay compares calendar dates in now's location.
func sameDay(a, now time.Time) bool {
	a = a.In(now.Location())
	ay, am, ad := a.Date()
	ny, nm, nd := now.Date()
	return ay == ny && am == nm && ad == nd
}

// IsOverdue reports whether due lies before now on an earlier calendar day.
// A task due earlier today is due today, not overdue. Status is not
// considered.
func IsOverdue(due *time.Time, now time.Time) bool {
	if due == nil {
		return false
	}
	return now.After(*due) && !sameDay(*due, now)
}

// IsDueToday reports whether due falls on now's calendar day.
func IsDueToday(due *time.Time, now time.Time) bool {
	return due != nil && sameDay(*due, now)
}

// IsDueThisWeek reports whether due falls in now's week, weeks starting on
// Sunday.
func IsDueThisWeek(due *time.Time, now time.Time) bool {
	if due == nil {
		return false
	}
	start := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
	end := start.AddDate(0, 0, 7)
	d := due.In(now.Location())
	return !d.Before(start) && d.Before(end)
}

// ParseDate accepts a calendar date (2006-01-02), read as midnight in loc,
// or a full RFC 3339 timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
