/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"gotest.tools/assert"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClientWithDB(sqlx.NewDb(db, "postgres")), mock
}

func TestInsertJobRunNilInput(t *testing.T) {
	client := &Client{}

	err := client.InsertJobRun(context.Background(), nil)
	assert.ErrorContains(t, err, "the input is empty")
}

func TestInsertJobRunNoDBConnection(t *testing.T) {
	client := &Client{}

	run := &JobRun{
		RunId:   "run-123",
		JobId:   "job-123",
		JobKind: JobKindBackup,
		Status:  RunQueued,
	}

	err := client.InsertJobRun(context.Background(), run)
	assert.ErrorContains(t, err, "db has not been initialized")
}

func TestSelectJobRunsNoDBConnection(t *testing.T) {
	client := &Client{}

	query := sqrl.Eq{"job_id": "job-123"}
	_, err := client.SelectJobRuns(context.Background(), query, []string{"id"}, 10, 0)
	assert.ErrorContains(t, err, "db has not been initialized")
}

func TestFinishJobRunRejectsNonTerminal(t *testing.T) {
	client := &Client{}

	err := client.FinishJobRun(context.Background(), "run-123", RunRunning, "", time.Second)
	assert.ErrorContains(t, err, "not terminal")
}

func TestMarkJobRunRunningOnlyFromQueued(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`UPDATE job_runs SET status='running'`).
		WithArgs(sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := client.MarkJobRunRunning(context.Background(), "run-1")
	assert.NilError(t, err)
	assert.Assert(t, ok)

	// second delivery: the run already left queued, no row matches
	mock.ExpectExec(`UPDATE job_runs SET status='running'`).
		WithArgs(sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = client.MarkJobRunRunning(context.Background(), "run-1")
	assert.NilError(t, err)
	assert.Assert(t, !ok)

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestFinishJobRunTerminalIsSticky(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`UPDATE job_runs SET status=`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := client.FinishJobRun(context.Background(), "run-1", RunCancelled, "cancel requested", time.Second)
	assert.Assert(t, commonerrors.IsTerminal(err))

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubResultNilInput(t *testing.T) {
	client := &Client{}

	err := client.UpsertSubResult(context.Background(), nil)
	assert.ErrorContains(t, err, "the input is empty")
}
