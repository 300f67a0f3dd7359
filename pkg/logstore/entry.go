/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package logstore collects structured job, session and system log entries
// through a bounded in-process ring and persists them to the catalog and an
// NDJSON file. Payload redaction happens before an entry enters the ring,
// so no sink ever sees raw secrets.
package logstore

import (
	"time"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/jsonutil"
)

// levels, ascending severity
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// sources
const (
	SourceJob     = "job"
	SourceSession = "session"
	SourceSystem  = "system"
	SourceAuth    = "auth"
)

// Entry is one structured log record.
type Entry struct {
	Ts       time.Time         `json:"ts"`
	Level    string            `json:"level"`
	Source   string            `json:"source"`
	JobRunId string            `json:"job_run_id,omitempty"`
	DeviceId string            `json:"device_id,omitempty"`
	Message  string            `json:"message"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// severity maps a level to its rank for drop decisions.
func severity(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	}
	return 1
}

// toRecord converts an entry to its catalog row.
func (e *Entry) toRecord() *client.LogEntry {
	var meta string
	if len(e.Meta) > 0 {
		meta = string(jsonutil.MarshalSilently(e.Meta))
	}
	return &client.LogEntry{
		Ts:       dbutils.NullTime(e.Ts),
		Level:    e.Level,
		Source:   e.Source,
		JobRunId: dbutils.NullString(e.JobRunId),
		DeviceId: dbutils.NullString(e.DeviceId),
		Message:  e.Message,
		Meta:     dbutils.NullString(meta),
	}
}
