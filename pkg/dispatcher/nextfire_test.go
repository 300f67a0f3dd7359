/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package dispatcher

import (
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	assert.NilError(t, err)
	return parsed
}

func TestNextFireOnceNeverRepeats(t *testing.T) {
	schedule := &client.Schedule{ScheduleId: "s1", Kind: client.ScheduleOnce}
	next, err := NextFire(schedule, time.Now())
	assert.NilError(t, err)
	assert.Assert(t, next == nil)
}

func TestNextFireIntervalKeepsPhase(t *testing.T) {
	after := mustTime(t, "2026-08-24T10:00:30Z")
	schedule := &client.Schedule{
		ScheduleId:     "s1",
		Kind:           client.ScheduleInterval,
		IntervalSecond: 300,
		NextFire:       dbutils.NullTime(mustTime(t, "2026-08-24T10:00:00Z")),
	}
	next, err := NextFire(schedule, after)
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T10:05:00Z"))
}

func TestNextFireIntervalSkipsBacklog(t *testing.T) {
	// three occurrences were missed; the next fire lands after now, not at
	// the oldest missed slot
	after := mustTime(t, "2026-08-24T11:01:00Z")
	schedule := &client.Schedule{
		ScheduleId:     "s1",
		Kind:           client.ScheduleInterval,
		IntervalSecond: 1200,
		NextFire:       dbutils.NullTime(mustTime(t, "2026-08-24T10:00:00Z")),
	}
	next, err := NextFire(schedule, after)
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T11:20:00Z"))
}

func TestNextFireIntervalRejectsZero(t *testing.T) {
	schedule := &client.Schedule{ScheduleId: "s1", Kind: client.ScheduleInterval}
	_, err := NextFire(schedule, time.Now())
	assert.ErrorContains(t, err, "has no interval")
}

func TestNextFireDaily(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleDaily,
		TimeOfDay:  dbutils.NullString("02:30"),
	}
	next, err := NextFire(schedule, mustTime(t, "2026-08-24T01:00:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T02:30:00Z"))

	// already past today's slot
	next, err = NextFire(schedule, mustTime(t, "2026-08-24T03:00:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-25T02:30:00Z"))
}

func TestNextFireDailyHonorsTimezone(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleDaily,
		TimeOfDay:  dbutils.NullString("02:30"),
		Timezone:   "America/New_York",
	}
	// 01:00 UTC is 21:00 the previous day in New York (EDT), so the next
	// 02:30 New York slot is 06:30 UTC
	next, err := NextFire(schedule, mustTime(t, "2026-08-24T01:00:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T06:30:00Z"))
}

func TestNextFireWeekly(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleWeekly,
		TimeOfDay:  dbutils.NullString("04:00"),
		DaysOfWeek: dbutils.NullString(`["monday","friday"]`),
	}
	// 2026-08-24 is a Monday
	next, err := NextFire(schedule, mustTime(t, "2026-08-24T05:00:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-28T04:00:00Z"))

	next, err = NextFire(schedule, mustTime(t, "2026-08-24T03:00:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T04:00:00Z"))
}

func TestNextFireWeeklyRejectsBadDay(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleWeekly,
		TimeOfDay:  dbutils.NullString("04:00"),
		DaysOfWeek: dbutils.NullString(`["caturday"]`),
	}
	_, err := NextFire(schedule, time.Now())
	assert.ErrorContains(t, err, "invalid weekday")
}

func TestNextFireCron(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleCron,
		CronExpr:   dbutils.NullString("*/15 * * * *"),
	}
	next, err := NextFire(schedule, mustTime(t, "2026-08-24T10:07:00Z"))
	assert.NilError(t, err)
	assert.Equal(t, next.UTC(), mustTime(t, "2026-08-24T10:15:00Z"))
}

func TestNextFireCronRejectsBadExpr(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleCron,
		CronExpr:   dbutils.NullString("not a cron line"),
	}
	_, err := NextFire(schedule, time.Now())
	assert.Assert(t, err != nil)
}

func TestNextFireUnknownKind(t *testing.T) {
	schedule := &client.Schedule{ScheduleId: "s1", Kind: "lunar"}
	_, err := NextFire(schedule, time.Now())
	assert.ErrorContains(t, err, "unknown schedule kind")
}

func TestNextFireInvalidTimezone(t *testing.T) {
	schedule := &client.Schedule{
		ScheduleId: "s1",
		Kind:       client.ScheduleDaily,
		TimeOfDay:  dbutils.NullString("02:30"),
		Timezone:   "Mars/Olympus_Mons",
	}
	_, err := NextFire(schedule, time.Now())
	assert.ErrorContains(t, err, "invalid timezone")
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, priorityFor(&client.Job{Kind: client.JobKindReachability}), 0)
	assert.Equal(t, priorityFor(&client.Job{Kind: client.JobKindCommand}), 1)
	assert.Equal(t, priorityFor(&client.Job{Kind: client.JobKindBackup}), 2)
}
