/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/jsonutil"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/timeutil"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NextFire computes the first fire instant strictly after the reference
// time. A nil result means the schedule never fires again (a once schedule
// that already fired). Missed occurrences are skipped, never replayed: a
// schedule that was due three times during an outage fires once and
// advances past now.
func NextFire(schedule *client.Schedule, after time.Time) (*time.Time, error) {
	loc, err := scheduleLocation(schedule)
	if err != nil {
		return nil, err
	}
	switch schedule.Kind {
	case client.ScheduleOnce:
		return nil, nil

	case client.ScheduleInterval:
		if schedule.IntervalSecond <= 0 {
			return nil, commonerrors.NewBadRequest(
				fmt.Sprintf("schedule %s has no interval", schedule.ScheduleId))
		}
		interval := time.Duration(schedule.IntervalSecond) * time.Second
		// stay phase-aligned with the original next_fire instead of
		// drifting by dispatch latency
		next := dbutils.ParseNullTime(schedule.NextFire)
		if next.IsZero() {
			next = after
		}
		for !next.After(after) {
			next = next.Add(interval)
		}
		return &next, nil

	case client.ScheduleDaily:
		hour, minute, err := clockOf(schedule)
		if err != nil {
			return nil, err
		}
		next := timeutil.NextDaily(after, hour, minute, loc)
		return &next, nil

	case client.ScheduleWeekly:
		hour, minute, err := clockOf(schedule)
		if err != nil {
			return nil, err
		}
		days, err := weekdaysOf(schedule)
		if err != nil {
			return nil, err
		}
		next := timeutil.NextWeekly(after, days, hour, minute, loc)
		if next.IsZero() {
			return nil, commonerrors.NewBadRequest(
				fmt.Sprintf("schedule %s has no weekdays", schedule.ScheduleId))
		}
		return &next, nil

	case client.ScheduleCron:
		expr := dbutils.ParseNullString(schedule.CronExpr)
		if expr == "" {
			return nil, commonerrors.NewBadRequest(
				fmt.Sprintf("schedule %s has no cron expression", schedule.ScheduleId))
		}
		spec, err := timeutil.ParseCronStandard(expr)
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		next := spec.Next(after.In(loc))
		if next.IsZero() {
			return nil, nil
		}
		return &next, nil
	}
	return nil, commonerrors.NewBadRequest(fmt.Sprintf("unknown schedule kind %q", schedule.Kind))
}

func scheduleLocation(schedule *client.Schedule) (*time.Location, error) {
	if schedule.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, commonerrors.NewBadRequest(
			fmt.Sprintf("schedule %s has invalid timezone %q", schedule.ScheduleId, schedule.Timezone))
	}
	return loc, nil
}

func clockOf(schedule *client.Schedule) (int, int, error) {
	value := dbutils.ParseNullString(schedule.TimeOfDay)
	if value == "" {
		return 0, 0, commonerrors.NewBadRequest(
			fmt.Sprintf("schedule %s has no time of day", schedule.ScheduleId))
	}
	return timeutil.ParseClock(value)
}

func weekdaysOf(schedule *client.Schedule) ([]time.Weekday, error) {
	names := jsonutil.UnmarshalStrings(dbutils.ParseNullString(schedule.DaysOfWeek))
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, commonerrors.NewBadRequest(
				fmt.Sprintf("schedule %s has invalid weekday %q", schedule.ScheduleId, name))
		}
		days = append(days, day)
	}
	return days, nil
}
