/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	getJobCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE job_id = $1 LIMIT 1`, TPJobs)
	insertJobFormat = `INSERT INTO ` + TPJobs + ` (%s) VALUES (%s)`
	updateJobCmd    = fmt.Sprintf(`UPDATE %s
		SET name = :name,
		    kind = :kind,
		    device_ids = :device_ids,
		    tag_ids = :tag_ids,
		    parameters = :parameters,
		    enabled = :enabled,
		    fanout = :fanout,
		    max_duration_second = :max_duration_second,
		    update_time = :update_time
		WHERE job_id = :job_id`, TPJobs)
)

// UpsertJob inserts a job definition or updates an existing one.
// The is_system_job flag is write-once at insert.
func (c *Client) UpsertJob(ctx context.Context, job *Job) error {
	if job == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	var jobs []*Job
	if err = db.SelectContext(ctx, &jobs, getJobCmd, job.JobId); err != nil {
		klog.ErrorS(err, "failed to select job", "id", job.JobId)
		return err
	}
	if len(jobs) > 0 && jobs[0] != nil {
		_, err = db.NamedExecContext(ctx, updateJobCmd, job)
		if err != nil {
			klog.ErrorS(err, "failed to upsert job db", "id", job.JobId)
		}
	} else {
		_, err = db.NamedExecContext(ctx, generateCommand(*job, insertJobFormat, "id"), job)
		if err != nil {
			klog.ErrorS(err, "failed to insert job db", "id", job.JobId)
		}
	}
	return err
}

// GetJob retrieves one job by its id.
func (c *Client) GetJob(ctx context.Context, jobId string) (*Job, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var jobs []*Job
	if err = db.SelectContext(ctx, &jobs, getJobCmd, jobId); err != nil {
		return nil, fmt.Errorf("failed to select job from db: %v", err)
	}
	if len(jobs) == 0 || jobs[0] == nil {
		return nil, commonerrors.NewNotFound("job", jobId)
	}
	return jobs[0], nil
}

// SelectJobs retrieves jobs based on query conditions.
func (c *Client) SelectJobs(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Job, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPJobs)

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
		return nil, fmt.Errorf("failed to build select jobs query: %v", err)
	}

	var jobs []*Job
	err = db.SelectContext(ctx, &jobs, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs from db: %v", err)
	}
	return jobs, nil
}

// CountJobs counts jobs based on query conditions.
func (c *Client) CountJobs(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("COUNT(*)").From(TPJobs)
	if query != nil {
		builder = builder.Where(query)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count jobs query: %v", err)
	}
	var count int
	err = db.GetContext(ctx, &count, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs from db: %v", err)
	}
	return count, nil
}

// SetJobEnabled flips the enabled flag of a job.
func (c *Client) SetJobEnabled(ctx context.Context, jobId string, enabled bool) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET enabled=$1 WHERE job_id=$2`, TPJobs)
	_, err = db.ExecContext(ctx, cmd, enabled, jobId)
	if err != nil {
		klog.ErrorS(err, "failed to update job db", "JobId", jobId)
		return err
	}
	return nil
}

// DeleteJob removes a job, its schedules, and nothing else: historical runs
// keep referring to the job id for audit.
func (c *Client) DeleteJob(ctx context.Context, jobId string) error {
	job, err := c.GetJob(ctx, jobId)
	if err != nil {
		return err
	}
	if job.IsSystemJob {
		return commonerrors.NewForbidden("system jobs cannot be deleted")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE job_id=$1`, TPSchedules)
	if _, err = db.ExecContext(ctx, cmd, jobId); err != nil {
		klog.ErrorS(err, "failed to delete job schedules", "JobId", jobId)
		return err
	}
	cmd = fmt.Sprintf(`DELETE FROM %s WHERE job_id=$1`, TPJobs)
	if _, err = db.ExecContext(ctx, cmd, jobId); err != nil {
		klog.ErrorS(err, "failed to delete job db", "JobId", jobId)
		return err
	}
	return nil
}
