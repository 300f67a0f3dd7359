/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/lib/pq"
)

const (
	DESC = "desc"
	ASC  = "asc"

	CreateTime = "create_time"
)

// table names
const (
	TPDevices        = "devices"
	TPTags           = "tags"
	TPDeviceTags     = "device_tags"
	TPCredentials    = "credentials"
	TPCredentialTags = "credential_tags"
	TPJobs           = "jobs"
	TPSchedules      = "schedules"
	TPJobRuns        = "job_runs"
	TPSubResults     = "device_sub_results"
	TPSnapshots      = "snapshots"
	TPSnapshotRefs   = "snapshot_refs"
	TPLogEntries     = "log_entries"
	TPEncryptionKeys = "encryption_keys"
	TPLeases         = "leases"
)

// job kinds
const (
	JobKindBackup       = "backup"
	JobKindReachability = "reachability"
	JobKindCommand      = "command"
	JobKindCustom       = "custom"
)

// job run statuses. Transitions are monotonic:
// queued -> running -> one terminal status.
const (
	RunQueued           = "queued"
	RunRunning          = "running"
	RunCompletedSuccess = "completed_success"
	RunCompletedFailed  = "completed_failed"
	RunFailedError      = "failed_error"
	RunCancelled        = "cancelled"
	RunNoDevices        = "no_devices"
)

// per-device sub-result statuses
const (
	SubSuccess      = "success"
	SubAuthFailure  = "auth_failure"
	SubUnreachable  = "unreachable"
	SubTimeout      = "timeout"
	SubCommandError = "command_error"
	SubAborted      = "aborted"
)

// schedule kinds
const (
	ScheduleOnce     = "once"
	ScheduleInterval = "interval"
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleCron     = "cron"
)

// transport kinds
const (
	TransportSSH    = "ssh"
	TransportTelnet = "telnet"
	TransportREST   = "rest"
)

// IsTerminalRunStatus reports whether a job run status admits no successor.
func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunCompletedSuccess, RunCompletedFailed, RunFailedError, RunCancelled, RunNoDevices:
		return true
	}
	return false
}

type Device struct {
	Id           int64          `db:"id"`
	DeviceId     string         `db:"device_id"`
	Hostname     string         `db:"hostname"`
	Host         string         `db:"host"`
	Transport    string         `db:"transport"`
	Port         int            `db:"port"`
	Description  sql.NullString `db:"description"`
	Model        sql.NullString `db:"model"`
	SerialNumber sql.NullString `db:"serial_number"`
	OwnerId      sql.NullString `db:"owner_id"`
	ReachStatus  sql.NullString `db:"reach_status"`
	ReachTime    pq.NullTime    `db:"reach_time"`
	ReachMessage sql.NullString `db:"reach_message"`
	CreateTime   pq.NullTime    `db:"create_time"`
	UpdateTime   pq.NullTime    `db:"update_time"`
}

// GetDeviceFieldTags returns the DeviceFieldTags value.
func GetDeviceFieldTags() map[string]string {
	d := Device{}
	return getFieldTags(d)
}

type Tag struct {
	Id         int64          `db:"id"`
	TagId      string         `db:"tag_id"`
	Name       string         `db:"name"`
	Type       sql.NullString `db:"type"`
	CreateTime pq.NullTime    `db:"create_time"`
}

type DeviceTag struct {
	DeviceId string `db:"device_id"`
	TagId    string `db:"tag_id"`
}

type CredentialTag struct {
	CredentialId string `db:"credential_id"`
	TagId        string `db:"tag_id"`
	Priority     int    `db:"priority"`
}

type Credential struct {
	Id           int64          `db:"id"`
	CredentialId string         `db:"credential_id"`
	Username     string         `db:"username"`
	Secret       string         `db:"secret"`
	KeyId        string         `db:"key_id"`
	Priority     int            `db:"priority"`
	SuccessCount int64          `db:"success_count"`
	FailureCount int64          `db:"failure_count"`
	LastUsed     pq.NullTime    `db:"last_used"`
	LastSuccess  pq.NullTime    `db:"last_success"`
	Description  sql.NullString `db:"description"`
	IsSystem     bool           `db:"is_system"`
	CreateTime   pq.NullTime    `db:"create_time"`
	UpdateTime   pq.NullTime    `db:"update_time"`
}

// GetCredentialFieldTags returns the CredentialFieldTags value.
func GetCredentialFieldTags() map[string]string {
	c := Credential{}
	return getFieldTags(c)
}

// RankedCredential is a credential row joined with its effective priority for
// one device (min of binding priority and credential priority across shared tags).
type RankedCredential struct {
	Credential
	EffectivePriority int `db:"effective_priority"`
}

type Job struct {
	Id                int64          `db:"id"`
	JobId             string         `db:"job_id"`
	Name              string         `db:"name"`
	Kind              string         `db:"kind"`
	DeviceIds         sql.NullString `db:"device_ids"`
	TagIds            sql.NullString `db:"tag_ids"`
	Parameters        sql.NullString `db:"parameters"`
	Enabled           bool           `db:"enabled"`
	IsSystemJob       bool           `db:"is_system_job"`
	Fanout            int            `db:"fanout"`
	MaxDurationSecond int            `db:"max_duration_second"`
	CreateTime        pq.NullTime    `db:"create_time"`
	UpdateTime        pq.NullTime    `db:"update_time"`
}

type Schedule struct {
	Id             int64          `db:"id"`
	ScheduleId     string         `db:"schedule_id"`
	JobId          string         `db:"job_id"`
	Kind           string         `db:"kind"`
	IntervalSecond int            `db:"interval_second"`
	TimeOfDay      sql.NullString `db:"time_of_day"`
	DaysOfWeek     sql.NullString `db:"days_of_week"`
	CronExpr       sql.NullString `db:"cron_expr"`
	Timezone       string         `db:"timezone"`
	Enabled        bool           `db:"enabled"`
	NextFire       pq.NullTime    `db:"next_fire"`
	LastFired      pq.NullTime    `db:"last_fired"`
}

type JobRun struct {
	Id              int64          `db:"id"`
	RunId           string         `db:"run_id"`
	JobId           string         `db:"job_id"`
	JobKind         string         `db:"job_kind"`
	Status          string         `db:"status"`
	Priority        int            `db:"priority"`
	DeviceIds       sql.NullString `db:"device_ids"`
	CancelRequested bool           `db:"cancel_requested"`
	EnqueueTime     pq.NullTime    `db:"enqueue_time"`
	StartTime       pq.NullTime    `db:"start_time"`
	EndTime         pq.NullTime    `db:"end_time"`
	DurationMs      int64          `db:"duration_ms"`
	Message         sql.NullString `db:"message"`
}

// GetJobRunFieldTags returns the JobRunFieldTags value.
func GetJobRunFieldTags() map[string]string {
	r := JobRun{}
	return getFieldTags(r)
}

type DeviceSubResult struct {
	Id           int64          `db:"id"`
	RunId        string         `db:"run_id"`
	DeviceId     string         `db:"device_id"`
	CredentialId sql.NullString `db:"credential_id"`
	Status       string         `db:"status"`
	ErrorMessage sql.NullString `db:"error_message"`
	SnapshotId   sql.NullString `db:"snapshot_id"`
	DurationMs   int64          `db:"duration_ms"`
	UpdateTime   pq.NullTime    `db:"update_time"`
}

type Snapshot struct {
	Id          int64       `db:"id"`
	ContentHash string      `db:"content_hash"`
	Content     []byte      `db:"content"`
	FirstSeen   pq.NullTime `db:"first_seen"`
}

type SnapshotRef struct {
	Id          int64       `db:"id"`
	ContentHash string      `db:"content_hash"`
	RunId       string      `db:"run_id"`
	DeviceId    string      `db:"device_id"`
	CreateTime  pq.NullTime `db:"create_time"`
}

type LogEntry struct {
	Id       int64          `db:"id"`
	Ts       pq.NullTime    `db:"ts"`
	Level    string         `db:"level"`
	Source   string         `db:"source"`
	JobRunId sql.NullString `db:"job_run_id"`
	DeviceId sql.NullString `db:"device_id"`
	Message  string         `db:"message"`
	Meta     sql.NullString `db:"meta"`
}

// GetLogEntryFieldTags returns the LogEntryFieldTags value.
func GetLogEntryFieldTags() map[string]string {
	e := LogEntry{}
	return getFieldTags(e)
}

type EncryptionKey struct {
	Id          int64          `db:"id"`
	KeyId       string         `db:"key_id"`
	Active      bool           `db:"active"`
	Fingerprint string         `db:"fingerprint"`
	Description sql.NullString `db:"description"`
	CreateTime  pq.NullTime    `db:"create_time"`
	RetiredTime pq.NullTime    `db:"retired_time"`
}

type Lease struct {
	Name       string      `db:"name"`
	Holder     string      `db:"holder"`
	ExpireTime pq.NullTime `db:"expire_time"`
}

// getFieldTags retrieves FieldTags for internal use.
func getFieldTags(obj interface{}) map[string]string {
	result := make(map[string]string)
	t := reflect.TypeOf(obj)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		result[strings.ToLower(field.Name)] = field.Tag.Get("db")
	}
	return result
}

// generateCommand generates a named SQL command string using reflection.
// It iterates through struct fields, builds column and value lists and skips
// fields carrying the specified ignoreTag.
func generateCommand(obj interface{}, format, ignoreTag string) string {
	t := reflect.TypeOf(obj)
	columns := make([]string, 0, t.NumField())
	values := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == ignoreTag {
			continue
		}
		columns = append(columns, tag)
		values = append(values, fmt.Sprintf(":%s", tag))
	}
	cmd := fmt.Sprintf(format, strings.Join(columns, ", "), strings.Join(values, ", "))
	return cmd
}

// GetFieldTag returns the FieldTag value.
func GetFieldTag(tags map[string]string, name string) string {
	name = strings.ToLower(name)
	return tags[name]
}
