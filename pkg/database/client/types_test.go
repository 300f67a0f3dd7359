/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"strings"
	"testing"

	"gotest.tools/assert"
)

func TestGenInsertJobRunCmd(t *testing.T) {
	run := JobRun{}
	cmd := generateCommand(run, insertJobRunFormat, "id")
	assert.Assert(t, strings.Contains(cmd, "run_id"))
	assert.Assert(t, strings.Contains(cmd, ":run_id"))
	assert.Assert(t, !strings.Contains(cmd, "(id,"))
}

func TestGetJobRunFieldTags(t *testing.T) {
	tags := GetJobRunFieldTags()
	runId := GetFieldTag(tags, "runId")
	assert.Equal(t, runId, "run_id")
	cancel := GetFieldTag(tags, "cancelRequested")
	assert.Equal(t, cancel, "cancel_requested")
}

func TestGetDeviceFieldTags(t *testing.T) {
	tags := GetDeviceFieldTags()
	assert.Equal(t, GetFieldTag(tags, "deviceId"), "device_id")
	assert.Equal(t, GetFieldTag(tags, "serialNumber"), "serial_number")
	assert.Equal(t, GetFieldTag(tags, "reachStatus"), "reach_status")
}

func TestIsTerminalRunStatus(t *testing.T) {
	for _, status := range []string{
		RunCompletedSuccess, RunCompletedFailed, RunFailedError, RunCancelled, RunNoDevices,
	} {
		assert.Assert(t, IsTerminalRunStatus(status), status)
	}
	assert.Assert(t, !IsTerminalRunStatus(RunQueued))
	assert.Assert(t, !IsTerminalRunStatus(RunRunning))
	assert.Assert(t, !IsTerminalRunStatus("unknown"))
}

func TestTableConstants(t *testing.T) {
	assert.Equal(t, TPJobRuns, "job_runs")
	assert.Equal(t, TPSubResults, "device_sub_results")
	assert.Equal(t, TPSnapshots, "snapshots")
	assert.Equal(t, TPLeases, "leases")
}
