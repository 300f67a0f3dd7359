/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	getScheduleCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE schedule_id = $1 LIMIT 1`, TPSchedules)
	insertScheduleFormat = `INSERT INTO ` + TPSchedules + ` (%s) VALUES (%s)`
	updateScheduleCmd    = fmt.Sprintf(`UPDATE %s
		SET kind = :kind,
		    interval_second = :interval_second,
		    time_of_day = :time_of_day,
		    days_of_week = :days_of_week,
		    cron_expr = :cron_expr,
		    timezone = :timezone,
		    enabled = :enabled,
		    next_fire = :next_fire
		WHERE schedule_id = :schedule_id`, TPSchedules)

	// dueSchedulesCmd picks enabled schedules whose next_fire has passed.
	dueSchedulesCmd = fmt.Sprintf(`SELECT * FROM %s
		WHERE enabled = true AND next_fire IS NOT NULL AND next_fire <= $1
		ORDER BY next_fire ASC`, TPSchedules)
)

// UpsertSchedule inserts a schedule or updates an existing one.
func (c *Client) UpsertSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	var schedules []*Schedule
	if err = db.SelectContext(ctx, &schedules, getScheduleCmd, schedule.ScheduleId); err != nil {
		klog.ErrorS(err, "failed to select schedule", "id", schedule.ScheduleId)
		return err
	}
	if len(schedules) > 0 && schedules[0] != nil {
		_, err = db.NamedExecContext(ctx, updateScheduleCmd, schedule)
		if err != nil {
			klog.ErrorS(err, "failed to upsert schedule db", "id", schedule.ScheduleId)
		}
	} else {
		_, err = db.NamedExecContext(ctx, generateCommand(*schedule, insertScheduleFormat, "id"), schedule)
		if err != nil {
			klog.ErrorS(err, "failed to insert schedule db", "id", schedule.ScheduleId)
		}
	}
	return err
}

// GetSchedule retrieves one schedule by its id.
func (c *Client) GetSchedule(ctx context.Context, scheduleId string) (*Schedule, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var schedules []*Schedule
	if err = db.SelectContext(ctx, &schedules, getScheduleCmd, scheduleId); err != nil {
		return nil, fmt.Errorf("failed to select schedule from db: %v", err)
	}
	if len(schedules) == 0 || schedules[0] == nil {
		return nil, commonerrors.NewNotFound("schedule", scheduleId)
	}
	return schedules[0], nil
}

// SelectSchedules retrieves schedules based on query conditions.
func (c *Client) SelectSchedules(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Schedule, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPSchedules)

	if query != nil {
		builder = builder.Where(query)
	}
	for _, order := range orderBy {
		builder = builder.OrderBy(order)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select schedules query: %v", err)
	}

	var schedules []*Schedule
	err = db.SelectContext(ctx, &schedules, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select schedules from db: %v", err)
	}
	return schedules, nil
}

// SelectDueSchedules returns all enabled schedules due at or before now.
func (c *Client) SelectDueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var schedules []*Schedule
	err = db.SelectContext(ctx, &schedules, dueSchedulesCmd, dbutils.NullTime(now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to select due schedules from db: %v", err)
	}
	return schedules, nil
}

// AdvanceSchedule moves a schedule past the fire it just produced. A nil
// next disables further firing (used for once schedules after they fire).
func (c *Client) AdvanceSchedule(ctx context.Context, scheduleId string, next *time.Time, fired time.Time) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	var nextFire, lastFired = dbutils.NullTime(time.Time{}), dbutils.NullTime(fired.UTC())
	enabled := false
	if next != nil {
		nextFire = dbutils.NullTime(next.UTC())
		enabled = true
	}
	cmd := fmt.Sprintf(`UPDATE %s SET next_fire=$1, last_fired=$2, enabled=$3 WHERE schedule_id=$4`, TPSchedules)
	_, err = db.ExecContext(ctx, cmd, nextFire, lastFired, enabled, scheduleId)
	if err != nil {
		klog.ErrorS(err, "failed to advance schedule", "ScheduleId", scheduleId)
		return err
	}
	return nil
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, scheduleId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE schedule_id=$1`, TPSchedules)
	_, err = db.ExecContext(ctx, cmd, scheduleId)
	return err
}
