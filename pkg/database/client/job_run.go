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
	getJobRunCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE run_id = $1 LIMIT 1`, TPJobRuns)
	insertJobRunFormat = `INSERT INTO ` + TPJobRuns + ` (%s) VALUES (%s)`

	// markRunningCmd only succeeds on a queued run so a duplicate queue
	// delivery of an already-processed run becomes a no-op.
	markRunningCmd = fmt.Sprintf(`UPDATE %s SET status='%s', start_time=$1
		WHERE run_id=$2 AND status='%s'`, TPJobRuns, RunRunning, RunQueued)

	// finishRunCmd refuses to overwrite a terminal status.
	finishRunCmd = fmt.Sprintf(`UPDATE %s SET status=$1, end_time=$2, duration_ms=$3, message=$4
		WHERE run_id=$5 AND status NOT IN ('%s','%s','%s','%s','%s')`, TPJobRuns,
		RunCompletedSuccess, RunCompletedFailed, RunFailedError, RunCancelled, RunNoDevices)

	upsertSubResultCmd = fmt.Sprintf(`INSERT INTO %s
		(run_id, device_id, credential_id, status, error_message, snapshot_id, duration_ms, update_time)
		VALUES (:run_id, :device_id, :credential_id, :status, :error_message, :snapshot_id, :duration_ms, :update_time)
		ON CONFLICT (run_id, device_id) DO UPDATE SET
		    credential_id = EXCLUDED.credential_id,
		    status = EXCLUDED.status,
		    error_message = EXCLUDED.error_message,
		    snapshot_id = EXCLUDED.snapshot_id,
		    duration_ms = EXCLUDED.duration_ms,
		    update_time = EXCLUDED.update_time`, TPSubResults)
)

// InsertJobRun records a freshly enqueued run.
func (c *Client) InsertJobRun(ctx context.Context, run *JobRun) error {
	if run == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*run, insertJobRunFormat, "id"), run)
	if err != nil {
		return fmt.Errorf("failed to insert job_run to db: %v", err)
	}
	return nil
}

// EnsureJobRun records a freshly enqueued run, tolerating a replay: a run id
// already present is left untouched so re-firing the same schedule
// occurrence cannot mint a second run.
func (c *Client) EnsureJobRun(ctx context.Context, run *JobRun) error {
	if run == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := generateCommand(*run, insertJobRunFormat, "id") + ` ON CONFLICT (run_id) DO NOTHING`
	if _, err = db.NamedExecContext(ctx, cmd, run); err != nil {
		return fmt.Errorf("failed to ensure job_run in db: %v", err)
	}
	return nil
}

// GetJobRun retrieves one run by its id.
func (c *Client) GetJobRun(ctx context.Context, runId string) (*JobRun, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var runs []*JobRun
	if err = db.SelectContext(ctx, &runs, getJobRunCmd, runId); err != nil {
		return nil, fmt.Errorf("failed to select job_run from db: %v", err)
	}
	if len(runs) == 0 || runs[0] == nil {
		return nil, commonerrors.NewNotFound("job_run", runId)
	}
	return runs[0], nil
}

// SelectJobRuns retrieves runs based on query conditions.
func (c *Client) SelectJobRuns(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*JobRun, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPJobRuns)

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
		return nil, fmt.Errorf("failed to build select job_runs query: %v", err)
	}

	var runs []*JobRun
	err = db.SelectContext(ctx, &runs, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select job_runs from db: %v", err)
	}
	return runs, nil
}

// CountJobRuns counts runs based on query conditions.
func (c *Client) CountJobRuns(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("COUNT(*)").From(TPJobRuns)
	if query != nil {
		builder = builder.Where(query)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count job_runs query: %v", err)
	}
	var count int
	err = db.GetContext(ctx, &count, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count job_runs from db: %v", err)
	}
	return count, nil
}

// MarkJobRunRunning transitions a queued run to running and returns whether
// the transition happened. False means the run had already left queued,
// which callers treat as a duplicate delivery.
func (c *Client) MarkJobRunRunning(ctx context.Context, runId string) (bool, error) {
	db, err := c.getDB()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, markRunningCmd, dbutils.NullTime(time.Now().UTC()), runId)
	if err != nil {
		klog.ErrorS(err, "failed to mark job_run running", "RunId", runId)
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FinishJobRun writes a terminal status. A run already terminal stays as it
// is and the call reports RunTerminal.
func (c *Client) FinishJobRun(ctx context.Context, runId, status, message string, duration time.Duration) error {
	if !IsTerminalRunStatus(status) {
		return commonerrors.NewBadRequest(fmt.Sprintf("status %q is not terminal", status))
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, finishRunCmd,
		status, dbutils.NullTime(time.Now().UTC()), duration.Milliseconds(), dbutils.NullString(message), runId)
	if err != nil {
		klog.ErrorS(err, "failed to finish job_run", "RunId", runId)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return commonerrors.NewTerminal(runId)
	}
	return nil
}

// RequestJobRunCancel flags a run for cancellation. Workers observe the flag
// between device sessions; a queued run is finished directly by the caller.
func (c *Client) RequestJobRunCancel(ctx context.Context, runId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET cancel_requested=true WHERE run_id=$1`, TPJobRuns)
	_, err = db.ExecContext(ctx, cmd, runId)
	if err != nil {
		klog.ErrorS(err, "failed to request job_run cancel", "RunId", runId)
		return err
	}
	return nil
}

// IsJobRunCancelRequested reads the cancellation flag.
func (c *Client) IsJobRunCancelRequested(ctx context.Context, runId string) (bool, error) {
	db, err := c.getDB()
	if err != nil {
		return false, err
	}
	cmd := fmt.Sprintf(`SELECT cancel_requested FROM %s WHERE run_id=$1`, TPJobRuns)
	var requested bool
	err = db.GetContext(ctx, &requested, cmd, runId)
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag from db: %v", err)
	}
	return requested, nil
}

// UpsertSubResult records the outcome of one device within a run. Retried
// deliveries overwrite the previous row for the same (run, device) pair.
func (c *Client) UpsertSubResult(ctx context.Context, result *DeviceSubResult) error {
	if result == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, upsertSubResultCmd, result)
	if err != nil {
		klog.ErrorS(err, "failed to upsert sub result", "RunId", result.RunId, "DeviceId", result.DeviceId)
		return err
	}
	return nil
}

// SelectSubResults returns every device sub-result of a run.
func (c *Client) SelectSubResults(ctx context.Context, runId string) ([]*DeviceSubResult, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE run_id=$1 ORDER BY device_id ASC`, TPSubResults)
	var results []*DeviceSubResult
	err = db.SelectContext(ctx, &results, cmd, runId)
	if err != nil {
		return nil, fmt.Errorf("failed to select sub results from db: %v", err)
	}
	return results, nil
}

// DeleteJobRun removes a run and its sub-results. Used by the enqueue
// compensation path when handing a run to the queue fails.
func (c *Client) DeleteJobRun(ctx context.Context, runId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE run_id=$1`, TPSubResults)
	if _, err = db.ExecContext(ctx, cmd, runId); err != nil {
		klog.ErrorS(err, "failed to delete sub results", "RunId", runId)
		return err
	}
	cmd = fmt.Sprintf(`DELETE FROM %s WHERE run_id=$1`, TPJobRuns)
	if _, err = db.ExecContext(ctx, cmd, runId); err != nil {
		klog.ErrorS(err, "failed to delete job_run db", "RunId", runId)
		return err
	}
	return nil
}
