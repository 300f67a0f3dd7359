/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gotest.tools/assert"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, sqlmock.Sqlmock, queue.Queue) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	dbClient := client.NewClientWithDB(sqlx.NewDb(db, "postgres"))

	mr := miniredis.RunT(t)
	q := queue.NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	logs := logstore.NewStore()
	t.Cleanup(logs.Close)

	d := New(dbClient, q, logs)
	d.now = func() time.Time { return time.Date(2026, 8, 24, 10, 0, 30, 0, time.UTC) }
	return d, mock, q
}

func backupJobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"job_id", "name", "kind", "device_ids", "enabled"}).
		AddRow("job-1", "nightly-backup", client.JobKindBackup, `["dev-1","dev-2"]`, true)
}

func intervalSchedule() *client.Schedule {
	return &client.Schedule{
		ScheduleId:     "sched-1",
		JobId:          "job-1",
		Kind:           client.ScheduleInterval,
		IntervalSecond: 300,
		Timezone:       "UTC",
		Enabled:        true,
		NextFire:       dbutils.NullTime(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)),
	}
}

func TestFireEnqueuesRunAndAdvances(t *testing.T) {
	d, mock, q := newTestDispatcher(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM jobs WHERE job_id`).WillReturnRows(backupJobRows())
	mock.ExpectExec(`INSERT INTO job_runs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE schedules SET next_fire`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.fire(ctx, intervalSchedule(), d.now())
	assert.NilError(t, err)
	assert.NilError(t, mock.ExpectationsWereMet())

	// a backup run lands on the low priority queue
	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Equal(t, item.Priority, queue.PriorityLow)
	assert.Assert(t, item.RunId != "")
}

func TestFireReplaySameOccurrenceYieldsOneRun(t *testing.T) {
	d, mock, q := newTestDispatcher(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM jobs WHERE job_id`).WillReturnRows(backupJobRows())
	mock.ExpectExec(`INSERT INTO job_runs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE schedules SET next_fire`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NilError(t, d.fire(ctx, intervalSchedule(), d.now()))

	// replay after a crash before advance: same occurrence, same run id, so
	// the run insert and the enqueue are both no-ops
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE job_id`).WillReturnRows(backupJobRows())
	mock.ExpectExec(`INSERT INTO job_runs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE schedules SET next_fire`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NilError(t, d.fire(ctx, intervalSchedule(), d.now()))

	depths, err := q.Pending(ctx)
	assert.NilError(t, err)
	assert.Equal(t, depths[queue.PriorityLow], int64(1))

	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Equal(t, item.RunId,
		occurrenceRunId("sched-1", time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)))

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestFireSkipsDisabledJobButAdvances(t *testing.T) {
	d, mock, _ := newTestDispatcher(t)

	rows := sqlmock.NewRows([]string{"job_id", "name", "kind", "device_ids", "enabled"}).
		AddRow("job-1", "nightly-backup", client.JobKindBackup, `["dev-1"]`, false)
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE job_id`).WillReturnRows(rows)
	// no run insert: the schedule only moves forward
	mock.ExpectExec(`UPDATE schedules SET next_fire`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.fire(context.Background(), intervalSchedule(), d.now())
	assert.NilError(t, err)
	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestFireCompensatesWhenEnqueueFails(t *testing.T) {
	d, mock, _ := newTestDispatcher(t)

	// replace the broker with one whose backend is already gone
	mr := miniredis.RunT(t)
	d.queue = queue.NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	mock.ExpectQuery(`SELECT \* FROM jobs WHERE job_id`).WillReturnRows(backupJobRows())
	mock.ExpectExec(`INSERT INTO job_runs`).WillReturnResult(sqlmock.NewResult(1, 1))
	// the orphaned run row is removed and the schedule is NOT advanced, so
	// the next tick retries
	mock.ExpectExec(`DELETE FROM device_sub_results`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM job_runs`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.fire(context.Background(), intervalSchedule(), d.now())
	assert.Assert(t, err != nil)
	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestAdvanceDisablesBrokenSchedule(t *testing.T) {
	d, mock, _ := newTestDispatcher(t)

	schedule := intervalSchedule()
	schedule.IntervalSecond = 0 // cannot compute the next fire
	mock.ExpectExec(`UPDATE schedules SET next_fire`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.advance(context.Background(), schedule, d.now())
	assert.NilError(t, err)
	assert.NilError(t, mock.ExpectationsWereMet())
}
