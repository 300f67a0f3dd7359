/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func TestReasonForError(t *testing.T) {
	err := NewNotFound("Device", "core-sw1")
	assert.Equal(t, ReasonForError(err), DeviceNotFound)
	assert.Equal(t, IsNotFound(err), true)
	assert.Equal(t, IsRaven(err), true)

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.Equal(t, IsNotFound(wrapped), true)

	assert.Equal(t, IsNotFound(fmt.Errorf("plain")), false)
	assert.Equal(t, ReasonForError(nil), "")
}

func TestIgnoreNotFound(t *testing.T) {
	assert.NilError(t, IgnoreNotFound(NewNotFoundWithMessage("gone")))
	err := NewBadRequest("bad selector")
	assert.Equal(t, IgnoreNotFound(err), err)
}

func TestDomainCodes(t *testing.T) {
	assert.Equal(t, IsDisabled(NewDisabled("nightly-backup")), true)
	assert.Equal(t, IsTerminal(NewTerminal("run-1")), true)
	assert.Equal(t, IsNoDevices(NewNoDevices("nightly-backup")), true)
	assert.Equal(t, IsVault(NewVaultError("no active key")), true)
	assert.Equal(t, IsConflict(NewConflict("schedule raced")), true)
}
