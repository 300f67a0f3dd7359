/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gotest.tools/assert"
)

func TestUpsertCredentialNilInput(t *testing.T) {
	client := &Client{}

	err := client.UpsertCredential(context.Background(), nil)
	assert.ErrorContains(t, err, "the input is empty")
}

func TestSelectRankedCredentialsNoDBConnection(t *testing.T) {
	client := &Client{}

	_, err := client.SelectRankedCredentials(context.Background(), "dev-1")
	assert.ErrorContains(t, err, "db has not been initialized")
}

func TestSelectRankedCredentialsOrdering(t *testing.T) {
	client, mock := newMockClient(t)

	rows := sqlmock.NewRows([]string{"credential_id", "username", "secret", "key_id", "priority", "effective_priority"}).
		AddRow("cred-a", "admin", "k1:abc", "k1", 10, 5).
		AddRow("cred-b", "backup", "k1:def", "k1", 20, 20)
	mock.ExpectQuery(`SELECT c\.\*, MIN\(LEAST\(ct\.priority, c\.priority\)\)`).
		WithArgs("dev-1").
		WillReturnRows(rows)

	ranked, err := client.SelectRankedCredentials(context.Background(), "dev-1")
	assert.NilError(t, err)
	assert.Equal(t, len(ranked), 2)
	assert.Equal(t, ranked[0].CredentialId, "cred-a")
	assert.Equal(t, ranked[0].EffectivePriority, 5)
	assert.Equal(t, ranked[1].CredentialId, "cred-b")

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestSelectTagRankedCredentialsUsesBindingPriority(t *testing.T) {
	client, mock := newMockClient(t)

	// cred-b carries the worse base priority but a better binding priority,
	// so the binding wins the ordering
	rows := sqlmock.NewRows([]string{"credential_id", "username", "secret", "key_id", "priority", "effective_priority"}).
		AddRow("cred-b", "backup", "k1:def", "k1", 50, 5).
		AddRow("cred-a", "admin", "k1:abc", "k1", 10, 10)
	mock.ExpectQuery(`SELECT c\.\*, LEAST\(ct\.priority, c\.priority\) AS effective_priority`).
		WithArgs("tag-1").
		WillReturnRows(rows)

	ranked, err := client.SelectTagRankedCredentials(context.Background(), "tag-1")
	assert.NilError(t, err)
	assert.Equal(t, len(ranked), 2)
	assert.Equal(t, ranked[0].CredentialId, "cred-b")
	assert.Equal(t, ranked[0].EffectivePriority, 5)
	assert.Equal(t, ranked[1].CredentialId, "cred-a")
	assert.Equal(t, ranked[1].EffectivePriority, 10)

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestRecordCredentialUsage(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(`UPDATE credentials SET success_count=success_count\+1`).
		WithArgs(sqlmock.AnyArg(), "cred-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NilError(t, client.RecordCredentialUsage(context.Background(), "cred-a", true))

	mock.ExpectExec(`UPDATE credentials SET failure_count=failure_count\+1`).
		WithArgs(sqlmock.AnyArg(), "cred-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NilError(t, client.RecordCredentialUsage(context.Background(), "cred-a", false))

	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestRotateCredentialsActivatesKeyInSameTransaction(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"credential_id", "username", "secret", "key_id"}).
		AddRow("cred-a", "admin", "k1:abc", "k1")
	mock.ExpectQuery(`SELECT \* FROM credentials FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE credentials SET secret=\$1, key_id=\$2`).
		WithArgs("k2:abc", "k2", sqlmock.AnyArg(), "cred-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// the active-key flip commits with the reseal, not after it
	mock.ExpectExec(`UPDATE encryption_keys SET active=false, retired_time=\$1`).
		WithArgs(sqlmock.AnyArg(), "k2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE encryption_keys SET active=true, retired_time=NULL`).
		WithArgs("k2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := client.RotateCredentials(context.Background(), "k2",
		func(sealed, keyId string) (string, error) { return "k2:abc", nil })
	assert.NilError(t, err)
	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestRotateCredentialsRollsBackWhenKeyMissing(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"credential_id", "username", "secret", "key_id"}).
		AddRow("cred-a", "admin", "k1:abc", "k1")
	mock.ExpectQuery(`SELECT \* FROM credentials FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE credentials SET secret=\$1, key_id=\$2`).
		WithArgs("k2:abc", "k2", sqlmock.AnyArg(), "cred-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE encryption_keys SET active=false, retired_time=\$1`).
		WithArgs(sqlmock.AnyArg(), "k2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE encryption_keys SET active=true, retired_time=NULL`).
		WithArgs("k2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := client.RotateCredentials(context.Background(), "k2",
		func(sealed, keyId string) (string, error) { return "k2:abc", nil })
	assert.ErrorContains(t, err, "not found")
	assert.NilError(t, mock.ExpectationsWereMet())
}

func TestRotateCredentialsNilCallback(t *testing.T) {
	client := &Client{}

	err := client.RotateCredentials(context.Background(), "k2", nil)
	assert.ErrorContains(t, err, "the reseal callback is empty")
}
