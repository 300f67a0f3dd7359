/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package dispatcher turns due schedules into queued job runs. Exactly one
// dispatcher is active at a time, elected through a catalog lease, so a
// schedule never fires twice for one occurrence.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/concurrent"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/jsonutil"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/sets"
)

const leaseName = "dispatcher"

// Dispatcher scans for due schedules on a fixed tick while it holds the
// leader lease.
type Dispatcher struct {
	dbClient *client.Client
	queue    queue.Queue
	logs     *logstore.Store

	holder   string
	tick     time.Duration
	leaseTTL time.Duration

	// now is swappable for tests
	now func() time.Time
}

// New assembles a Dispatcher from configuration.
func New(dbClient *client.Client, q queue.Queue, logs *logstore.Store) *Dispatcher {
	hostname, _ := os.Hostname()
	return &Dispatcher{
		dbClient: dbClient,
		queue:    q,
		logs:     logs,
		holder:   fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		tick:     time.Duration(commonconfig.GetDispatcherTickSecond()) * time.Second,
		leaseTTL: time.Duration(commonconfig.GetDispatcherLeaseTTLSecond()) * time.Second,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, competing for the lease and scanning
// while holding it.
func (d *Dispatcher) Run(ctx context.Context) {
	klog.Infof("dispatcher %s starting, tick=%s lease-ttl=%s", d.holder, d.tick, d.leaseTTL)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := d.dbClient.ReleaseLease(context.WithoutCancel(ctx), leaseName, d.holder); err != nil {
				klog.ErrorS(err, "failed to release dispatcher lease")
			}
			klog.Infof("dispatcher %s stopped", d.holder)
			return
		case <-ticker.C:
		}
		held, err := d.dbClient.AcquireLease(ctx, leaseName, d.holder, d.leaseTTL)
		if err != nil {
			klog.ErrorS(err, "lease acquisition failed")
			continue
		}
		if !held {
			continue
		}
		if err := d.Scan(ctx); err != nil {
			klog.ErrorS(err, "dispatch scan failed")
		}
	}
}

// Scan fires every due schedule once. Each schedule is handled
// independently: one broken schedule never blocks the others.
func (d *Dispatcher) Scan(ctx context.Context) error {
	now := d.now().UTC()
	due, err := d.dbClient.SelectDueSchedules(ctx, now)
	if err != nil {
		return err
	}
	_ = concurrent.ExecEach(due, func(schedule *client.Schedule) error {
		if err := d.fire(ctx, schedule, now); err != nil {
			klog.ErrorS(err, "failed to fire schedule", "ScheduleId", schedule.ScheduleId)
		}
		return nil
	})
	return nil
}

// fire creates one queued run for a due schedule and advances it past now.
// The order is deliberate: run row first, queue second, advance last. A
// crash between the steps leaves the schedule still due, and because the
// run id is derived from the occurrence, the replay regenerates the same id:
// the run insert and the enqueue both collapse into no-ops.
func (d *Dispatcher) fire(ctx context.Context, schedule *client.Schedule, now time.Time) error {
	job, err := d.dbClient.GetJob(ctx, schedule.JobId)
	if err != nil {
		return err
	}
	if !job.Enabled {
		// skip but keep the schedule moving so it resumes cleanly when
		// the job is re-enabled
		klog.V(2).Infof("schedule %s skipped, job %s disabled", schedule.ScheduleId, job.JobId)
		return d.advance(ctx, schedule, now)
	}

	if missed := dbutils.ParseNullTime(schedule.NextFire); !missed.IsZero() &&
		now.Sub(missed) > d.tick*2 {
		d.logs.System(logstore.LevelWarning, fmt.Sprintf(
			"missed_schedule: schedule %s was due at %s, firing once and skipping the backlog",
			schedule.ScheduleId, missed.Format(time.RFC3339)))
	}

	deviceIds, err := d.resolveDevices(ctx, job)
	if err != nil {
		return err
	}

	fireAt := dbutils.ParseNullTime(schedule.NextFire)
	if fireAt.IsZero() {
		fireAt = now
	}
	run := &client.JobRun{
		RunId:       occurrenceRunId(schedule.ScheduleId, fireAt),
		JobId:       job.JobId,
		JobKind:     job.Kind,
		Status:      client.RunQueued,
		Priority:    priorityFor(job),
		DeviceIds:   dbutils.NullString(jsonutil.MarshalStrings(deviceIds)),
		EnqueueTime: dbutils.NullTime(now),
	}
	if err = d.dbClient.EnsureJobRun(ctx, run); err != nil {
		return err
	}
	if err = d.queue.Enqueue(ctx, run.RunId, run.Priority); err != nil {
		// compensate: without a queue item the run row is unreachable
		// garbage, and not advancing lets the next tick retry
		if delErr := d.dbClient.DeleteJobRun(ctx, run.RunId); delErr != nil {
			klog.ErrorS(delErr, "failed to compensate unqueued run", "RunId", run.RunId)
		}
		return err
	}

	d.logs.Job(run.RunId, logstore.LevelInfo, fmt.Sprintf(
		"run enqueued by schedule %s: job=%s devices=%d", schedule.ScheduleId, job.JobId, len(deviceIds)))
	return d.advance(ctx, schedule, now)
}

// occurrenceRunId names one firing of one schedule: the same schedule and
// fire time always map to the same run id.
func occurrenceRunId(scheduleId string, fireAt time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(fmt.Sprintf("%s@%d", scheduleId, fireAt.Unix()))).String()
}

func (d *Dispatcher) advance(ctx context.Context, schedule *client.Schedule, now time.Time) error {
	next, err := NextFire(schedule, now)
	if err != nil {
		// a schedule that cannot compute its next fire must not spin the
		// scan loop forever; disable it loudly
		d.logs.System(logstore.LevelError, fmt.Sprintf(
			"disabling schedule %s: %v", schedule.ScheduleId, err))
		return d.dbClient.AdvanceSchedule(ctx, schedule.ScheduleId, nil, now)
	}
	return d.dbClient.AdvanceSchedule(ctx, schedule.ScheduleId, next, now)
}

// resolveDevices snapshots the job's device selection at fire time:
// explicit device ids plus every device carrying one of the job's tags,
// deduplicated.
func (d *Dispatcher) resolveDevices(ctx context.Context, job *client.Job) ([]string, error) {
	seen := sets.NewSet()
	var deviceIds []string
	for _, deviceId := range jsonutil.UnmarshalStrings(dbutils.ParseNullString(job.DeviceIds)) {
		if !seen.Has(deviceId) {
			seen.Insert(deviceId)
			deviceIds = append(deviceIds, deviceId)
		}
	}
	tagIds := jsonutil.UnmarshalStrings(dbutils.ParseNullString(job.TagIds))
	if len(tagIds) > 0 {
		devices, err := d.dbClient.SelectDevicesByTags(ctx, tagIds)
		if err != nil {
			return nil, err
		}
		for _, dev := range devices {
			if !seen.Has(dev.DeviceId) {
				seen.Insert(dev.DeviceId)
				deviceIds = append(deviceIds, dev.DeviceId)
			}
		}
	}
	return deviceIds, nil
}

// priorityFor maps job kinds to queue priorities: reachability probes are
// cheap and keep the inventory fresh, bulk backups yield to everything else.
func priorityFor(job *client.Job) int {
	switch job.Kind {
	case client.JobKindReachability:
		return queue.PriorityHigh
	case client.JobKindBackup:
		return queue.PriorityLow
	}
	return queue.PriorityNormal
}
