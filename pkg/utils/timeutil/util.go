/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	RFC3339NoZone = "2006-01-02T15:04:05"
	ClockFormat   = "15:04"
)

// ParseCronStandard parses a standard 5-field cron expression (plus the
// @every / @daily descriptors) and returns its schedule.
func ParseCronStandard(expr string) (cron.Schedule, error) {
	return cron.ParseStandard(expr)
}

// FormatRFC3339 formats a time without a zone suffix, in UTC.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(RFC3339NoZone)
}

// FormatDuration renders a second count as a compact h/m/s string.
func FormatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse(ClockFormat, value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %v", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDaily returns the next instant strictly after the reference time at
// which the wall clock in loc reads hour:minute.
func NextDaily(after time.Time, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly returns the next instant strictly after the reference time that
// falls on one of the given weekdays at hour:minute in loc.
func NextWeekly(after time.Time, days []time.Weekday, hour, minute int, loc *time.Location) time.Time {
	if len(days) == 0 {
		return time.Time{}
	}
	allowed := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		allowed[d] = true
	}
	candidate := NextDaily(after, hour, minute, loc)
	for i := 0; i < 7; i++ {
		if allowed[candidate.In(loc).Weekday()] {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
