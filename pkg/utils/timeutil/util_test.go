/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestParseCronStandard(t *testing.T) {
	expr := "@every 90s"
	schedule, err := ParseCronStandard(expr)
	assert.NilError(t, err)
	testTime, err := time.Parse(time.DateTime, "2024-03-08 01:01:09")
	assert.NilError(t, err)
	nextTime := schedule.Next(testTime)
	assert.Equal(t, nextTime.Format(time.DateTime), "2024-03-08 01:02:39")
	assert.Equal(t, nextTime.Sub(testTime).Seconds(), float64(90))

	_, err = ParseCronStandard("not a cron")
	assert.Assert(t, err != nil)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, FormatDuration(7500), "2h5m")
	assert.Equal(t, FormatDuration(61), "1m1s")
	assert.Equal(t, FormatDuration(9), "9s")
}

func TestNextDaily(t *testing.T) {
	after, _ := time.Parse(time.RFC3339, "2026-02-03T10:00:00Z")
	next := NextDaily(after, 11, 30, time.UTC)
	assert.Equal(t, next.Format(time.RFC3339), "2026-02-03T11:30:00Z")

	// already past today's slot, rolls to tomorrow
	next = NextDaily(after, 9, 0, time.UTC)
	assert.Equal(t, next.Format(time.RFC3339), "2026-02-04T09:00:00Z")

	// exactly at the slot is not "after" it
	at, _ := time.Parse(time.RFC3339, "2026-02-03T09:00:00Z")
	next = NextDaily(at, 9, 0, time.UTC)
	assert.Equal(t, next.Format(time.RFC3339), "2026-02-04T09:00:00Z")
}

func TestNextWeekly(t *testing.T) {
	// 2026-02-03 is a Tuesday
	after, _ := time.Parse(time.RFC3339, "2026-02-03T10:00:00Z")
	next := NextWeekly(after, []time.Weekday{time.Friday}, 8, 0, time.UTC)
	assert.Equal(t, next.Format(time.RFC3339), "2026-02-06T08:00:00Z")

	next = NextWeekly(after, []time.Weekday{time.Tuesday}, 8, 0, time.UTC)
	assert.Equal(t, next.Weekday(), time.Tuesday)
	assert.Equal(t, next.Format(time.RFC3339), "2026-02-10T08:00:00Z")
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("23:45")
	assert.NilError(t, err)
	assert.Equal(t, h, 23)
	assert.Equal(t, m, 45)

	_, _, err = ParseClock("25:00")
	assert.Assert(t, err != nil)
}
