/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/snapshots"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/jsonutil"
)

// jobParams is the parameters document of command jobs.
type jobParams struct {
	Commands []string `json:"commands"`
}

// executeRun drives one run to a terminal state. A returned error means the
// delivery should be retried (nack); nil means the run settled, whatever
// its terminal status.
func (p *Pool) executeRun(ctx context.Context, runId string) error {
	started, err := p.dbClient.MarkJobRunRunning(ctx, runId)
	if err != nil {
		return err
	}
	start := time.Now()
	run, err := p.dbClient.GetJobRun(ctx, runId)
	if err != nil {
		if !started {
			// the run row is gone; nothing left to execute
			return commonerrors.IgnoreNotFound(err)
		}
		return err
	}

	prior := map[string]string{}
	if !started {
		if client.IsTerminalRunStatus(run.Status) {
			klog.Infof("duplicate delivery of run %s in status %s, dropping", runId, run.Status)
			return nil
		}
		// a redelivered run a crashed worker left in running; resume it,
		// keeping the sub-results the earlier attempt already settled
		klog.Warningf("resuming run %s reclaimed in status %s", runId, run.Status)
		p.logs.Job(runId, logstore.LevelWarning, "resuming run after interrupted execution")
		results, err := p.dbClient.SelectSubResults(ctx, runId)
		if err != nil {
			return err
		}
		for _, result := range results {
			if result.Status != client.SubAborted {
				prior[result.DeviceId] = result.Status
			}
		}
	}

	job, err := p.dbClient.GetJob(ctx, run.JobId)
	if err != nil {
		return p.finish(ctx, runId, client.RunFailedError,
			fmt.Sprintf("job %s vanished: %v", run.JobId, err), start)
	}

	deadline := p.maxDuration
	if job.MaxDurationSecond > 0 {
		deadline = time.Duration(job.MaxDurationSecond) * time.Second
	}
	// the duration budget counts from when the run entered the queue, not
	// from when a worker claimed it
	enqueued := dbutils.ParseNullTime(run.EnqueueTime)
	if enqueued.IsZero() {
		enqueued = start
	}
	runCtx, cancel := context.WithDeadline(ctx, enqueued.Add(deadline))
	defer cancel()

	deviceIds := jsonutil.UnmarshalStrings(dbutils.ParseNullString(run.DeviceIds))
	if len(deviceIds) == 0 {
		p.logs.Job(runId, logstore.LevelWarning, "run resolves to no devices")
		return p.finish(ctx, runId, client.RunNoDevices, "no devices matched", start)
	}

	commands, err := commandsFor(job)
	if err != nil {
		return p.finish(ctx, runId, client.RunFailedError, err.Error(), start)
	}

	p.logs.Job(runId, logstore.LevelInfo,
		fmt.Sprintf("run started: job=%s kind=%s devices=%d", job.JobId, job.Kind, len(deviceIds)))

	fanout := p.fanout
	if job.Fanout > 0 {
		fanout = job.Fanout
	}
	statuses, panicked := p.fanOut(runCtx, run, job, deviceIds, commands, fanout, prior)

	status, message := Aggregate(statuses)
	switch {
	case panicked:
		status = client.RunFailedError
		message = "device task panicked, see run logs"
	case runCtx.Err() == context.DeadlineExceeded && status != client.RunCompletedSuccess:
		status = client.RunCompletedFailed
		message = fmt.Sprintf("timeout: run exceeded max duration %s", deadline)
	}
	p.logs.Job(runId, logstore.LevelInfo, fmt.Sprintf("run finished: %s (%s)", status, message))
	return p.finish(ctx, runId, status, message, start)
}

// fanOut executes the run's devices with at most fanout concurrent
// sessions and returns the sub-result status per device, plus whether any
// device task panicked. Devices already settled by an earlier attempt of a
// resumed run keep their recorded status and are not executed again.
// Cancellation is observed between devices: sessions in flight finish,
// waiting devices become aborted.
func (p *Pool) fanOut(ctx context.Context, run *client.JobRun, job *client.Job,
	deviceIds, commands []string, fanout int, prior map[string]string) ([]string, bool) {
	statuses := make([]string, len(deviceIds))
	panics := make([]bool, len(deviceIds))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanout)
	for i, deviceId := range deviceIds {
		if settled, ok := prior[deviceId]; ok {
			statuses[i] = settled
			continue
		}
		i, deviceId := i, deviceId
		group.Go(func() error {
			statuses[i], panics[i] = p.runDevice(groupCtx, run, job, deviceId, commands)
			return nil
		})
	}
	_ = group.Wait()
	panicked := false
	for _, hit := range panics {
		panicked = panicked || hit
	}
	return statuses, panicked
}

// runDevice executes one device and records its sub-result. Never returns
// an error: every outcome, including abortion and a panicking adapter,
// lands as a sub-result row.
func (p *Pool) runDevice(ctx context.Context, run *client.JobRun, job *client.Job,
	deviceId string, commands []string) (status string, panicked bool) {
	result := &client.DeviceSubResult{
		RunId:      run.RunId,
		DeviceId:   deviceId,
		UpdateTime: dbutils.NullTime(time.Now().UTC()),
	}
	defer func() {
		result.UpdateTime = dbutils.NullTime(time.Now().UTC())
		if err := p.dbClient.UpsertSubResult(context.WithoutCancel(ctx), result); err != nil {
			klog.ErrorS(err, "failed to record sub result", "RunId", run.RunId, "DeviceId", deviceId)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("device task panic on run %s device %s: %v", run.RunId, deviceId, r)
			p.logs.Session(run.RunId, deviceId, logstore.LevelError,
				fmt.Sprintf("device task panic: %v\n%s", r, debug.Stack()))
			result.Status = client.SubAborted
			result.ErrorMessage = dbutils.NullString(fmt.Sprintf("device task panic: %v", r))
			status, panicked = result.Status, true
		}
	}()

	if cancelled, _ := p.dbClient.IsJobRunCancelRequested(ctx, run.RunId); cancelled || ctx.Err() != nil {
		result.Status = client.SubAborted
		result.ErrorMessage = dbutils.NullString("run cancelled before device started")
		return result.Status, false
	}

	dev, err := p.dbClient.GetDevice(ctx, deviceId)
	if err != nil {
		result.Status = client.SubCommandError
		result.ErrorMessage = dbutils.NullString(fmt.Sprintf("device lookup failed: %v", err))
		return result.Status, false
	}

	start := time.Now()
	outcome := p.runner.Execute(ctx, run.RunId, dev, commands)
	result.Status = outcome.Status
	result.CredentialId = dbutils.NullString(outcome.CredentialId)
	result.DurationMs = time.Since(start).Milliseconds()
	if outcome.Err != nil {
		result.ErrorMessage = dbutils.NullString(outcome.Err.Error())
	}

	switch job.Kind {
	case client.JobKindBackup:
		if outcome.Status == client.SubSuccess {
			hash, created, err := p.snapshots().Save(ctx, run.RunId, deviceId, outcome.Output)
			if err != nil {
				klog.ErrorS(err, "failed to store snapshot", "RunId", run.RunId, "DeviceId", deviceId)
				result.Status = client.SubCommandError
				result.ErrorMessage = dbutils.NullString(fmt.Sprintf("snapshot store failed: %v", err))
			} else {
				result.SnapshotId = dbutils.NullString(hash)
				if created {
					p.logs.Session(run.RunId, deviceId, logstore.LevelInfo, "configuration changed since last capture")
				}
			}
		}
	case client.JobKindReachability:
		message := ""
		if outcome.Err != nil {
			message = outcome.Err.Error()
		}
		if err := p.dbClient.SetDeviceReachability(ctx, deviceId,
			reachStatusFor(outcome.Status), message); err != nil {
			klog.ErrorS(err, "failed to record reachability", "DeviceId", deviceId)
		}
	}
	return result.Status, false
}

func (p *Pool) snapshots() *snapshots.Store {
	return snapshots.NewStore(p.dbClient)
}

func (p *Pool) finish(ctx context.Context, runId, status, message string, start time.Time) error {
	err := p.dbClient.FinishJobRun(context.WithoutCancel(ctx), runId, status, message, time.Since(start))
	if commonerrors.IsTerminal(err) {
		// lost a race with a cancel; the run is settled either way
		return nil
	}
	return err
}

// commandsFor resolves what to send per job kind.
func commandsFor(job *client.Job) ([]string, error) {
	switch job.Kind {
	case client.JobKindBackup:
		return []string{"show running-config"}, nil
	case client.JobKindReachability:
		// reachability check only, no commands
		return nil, nil
	case client.JobKindCommand, client.JobKindCustom:
		var params jobParams
		raw := dbutils.ParseNullString(job.Parameters)
		if raw == "" {
			return nil, fmt.Errorf("job %s has no commands", job.JobId)
		}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("corrupt job parameters: %v", err)
		}
		if len(params.Commands) == 0 {
			return nil, fmt.Errorf("job %s has no commands", job.JobId)
		}
		return params.Commands, nil
	}
	return nil, fmt.Errorf("unknown job kind %q", job.Kind)
}

func reachStatusFor(subStatus string) string {
	if subStatus == client.SubSuccess {
		return "reachable"
	}
	return "unreachable"
}

// Aggregate folds per-device sub statuses into the run's terminal status.
func Aggregate(statuses []string) (string, string) {
	if len(statuses) == 0 {
		return client.RunNoDevices, "no devices matched"
	}
	var success, failed, aborted int
	for _, status := range statuses {
		switch status {
		case client.SubSuccess:
			success++
		case client.SubAborted:
			aborted++
		default:
			failed++
		}
	}
	total := len(statuses)
	switch {
	case aborted > 0:
		return client.RunCancelled,
			fmt.Sprintf("cancelled: %d/%d devices completed before cancellation", success+failed, total)
	case failed == 0:
		return client.RunCompletedSuccess, fmt.Sprintf("%d/%d devices succeeded", success, total)
	default:
		return client.RunCompletedFailed, fmt.Sprintf("%d/%d devices failed", failed, total)
	}
}
