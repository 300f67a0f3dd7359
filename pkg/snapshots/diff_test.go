/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package snapshots

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"gotest.tools/assert"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NilError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(client.NewClientWithDB(sqlx.NewDb(db, "postgres"))), mock
}

func refRows(hashes ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"content_hash", "run_id", "device_id"})
	for _, hash := range hashes {
		rows.AddRow(hash, "run-1", "dev-1")
	}
	return rows
}

func TestCompareDiffsSameDeviceSnapshots(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM snapshot_refs WHERE \(device_id = \$1 AND content_hash = \$2\)`).
		WithArgs("dev-1", "h1").WillReturnRows(refRows("h1"))
	mock.ExpectQuery(`SELECT \* FROM snapshot_refs WHERE \(device_id = \$1 AND content_hash = \$2\)`).
		WithArgs("dev-1", "h2").WillReturnRows(refRows("h2"))
	mock.ExpectQuery(`SELECT \* FROM snapshots WHERE content_hash = \$1`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash", "content"}).
			AddRow("h1", []byte("hostname r1\n")))
	mock.ExpectQuery(`SELECT \* FROM snapshots WHERE content_hash = \$1`).
		WithArgs("h2").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash", "content"}).
			AddRow("h2", []byte("hostname r2\n")))

	diff, err := store.Compare(context.Background(), "dev-1", "h1", "h2")
	assert.NilError(t, err)
	assert.Assert(t, !diff.Identical())
	assert.Equal(t, diff.Added, 1)
	assert.Equal(t, diff.Removed, 1)

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestCompareRejectsSnapshotOfAnotherDevice(t *testing.T) {
	store, mock := newTestStore(t)

	// h1 was captured from dev-1; h2 never was
	mock.ExpectQuery(`SELECT \* FROM snapshot_refs WHERE \(device_id = \$1 AND content_hash = \$2\)`).
		WithArgs("dev-1", "h1").WillReturnRows(refRows("h1"))
	mock.ExpectQuery(`SELECT \* FROM snapshot_refs WHERE \(device_id = \$1 AND content_hash = \$2\)`).
		WithArgs("dev-1", "h2").WillReturnRows(refRows())

	_, err := store.Compare(context.Background(), "dev-1", "h1", "h2")
	assert.ErrorContains(t, err, "was not captured from device dev-1")

	assert.NilError(t, mock.ExpectationsWereMet())
}
