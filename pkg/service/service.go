/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package service is the typed operation surface of the system: everything
// the API server exposes and the CLI calls goes through here, so validation
// and cross-component orchestration live in one place.
package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/ccieblogger/netraven-sub003/pkg/credentials"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	"github.com/ccieblogger/netraven-sub003/pkg/dispatcher"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
	"github.com/ccieblogger/netraven-sub003/pkg/snapshots"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/jsonutil"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/sets"
	"github.com/ccieblogger/netraven-sub003/pkg/vault"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// Service bundles the shared components behind typed operations.
type Service struct {
	dbClient  *client.Client
	queue     queue.Queue
	vault     *vault.Vault
	snapshots *snapshots.Store
	resolver  *credentials.Resolver
	logs      *logstore.Store
}

// New assembles the service surface.
func New(dbClient *client.Client, q queue.Queue, v *vault.Vault, logs *logstore.Store) *Service {
	return &Service{
		dbClient:  dbClient,
		queue:     q,
		vault:     v,
		snapshots: snapshots.NewStore(dbClient),
		resolver:  credentials.NewResolver(dbClient, v),
		logs:      logs,
	}
}

// ValidateName enforces the shared naming rule for user-supplied names.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return commonerrors.NewBadRequest(fmt.Sprintf(
			"invalid name %q: must be 1-128 alphanumeric, dot, dash or underscore characters", name))
	}
	return nil
}

// --- devices ---

// DeviceSpec is the user-facing device document.
type DeviceSpec struct {
	Hostname    string   `json:"hostname"`
	Host        string   `json:"host"`
	Transport   string   `json:"transport"`
	Port        int      `json:"port"`
	Description string   `json:"description,omitempty"`
	Model       string   `json:"model,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func defaultPort(transport string) int {
	switch transport {
	case client.TransportSSH:
		return 22
	case client.TransportTelnet:
		return 23
	case client.TransportREST:
		return 443
	}
	return 0
}

func validTransport(transport string) bool {
	switch transport {
	case client.TransportSSH, client.TransportTelnet, client.TransportREST:
		return true
	}
	return false
}

// CreateDevice registers a device and binds its tags.
func (s *Service) CreateDevice(ctx context.Context, spec *DeviceSpec) (*client.Device, error) {
	if err := ValidateName(spec.Hostname); err != nil {
		return nil, err
	}
	if spec.Host == "" {
		return nil, commonerrors.NewBadRequest("host is required")
	}
	if !validTransport(spec.Transport) {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid transport %q", spec.Transport))
	}
	port := spec.Port
	if port == 0 {
		port = defaultPort(spec.Transport)
	}
	now := dbutils.NullTime(time.Now().UTC())
	dev := &client.Device{
		DeviceId:    uuid.NewString(),
		Hostname:    spec.Hostname,
		Host:        spec.Host,
		Transport:   spec.Transport,
		Port:        port,
		Description: dbutils.NullString(spec.Description),
		Model:       dbutils.NullString(spec.Model),
		CreateTime:  now,
		UpdateTime:  now,
	}
	if err := s.dbClient.UpsertDevice(ctx, dev); err != nil {
		return nil, err
	}
	for _, tagId := range spec.Tags {
		if err := s.dbClient.BindDeviceTag(ctx, dev.DeviceId, tagId); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

// ListDevices pages through the inventory.
func (s *Service) ListDevices(ctx context.Context, limit, offset int) ([]*client.Device, int, error) {
	devices, err := s.dbClient.SelectDevices(ctx, nil, []string{"hostname ASC"}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.dbClient.CountDevices(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

// GetDevice returns one device.
func (s *Service) GetDevice(ctx context.Context, deviceId string) (*client.Device, error) {
	return s.dbClient.GetDevice(ctx, deviceId)
}

// DeleteDevice removes a device from the inventory. A device still named by
// a queued or running job run cannot be deleted: the run would execute
// against a ghost.
func (s *Service) DeleteDevice(ctx context.Context, deviceId string) error {
	if _, err := s.dbClient.GetDevice(ctx, deviceId); err != nil {
		return err
	}
	// device_ids is a JSON array of quoted ids
	live, err := s.dbClient.CountJobRuns(ctx, sqrl.And{
		sqrl.Eq{"status": []string{client.RunQueued, client.RunRunning}},
		sqrl.Like{"device_ids": `%"` + deviceId + `"%`},
	})
	if err != nil {
		return err
	}
	if live > 0 {
		return commonerrors.NewConflict(
			fmt.Sprintf("device %s is referenced by %d live job runs", deviceId, live))
	}
	return s.dbClient.DeleteDevice(ctx, deviceId)
}

// --- tags ---

// CreateTag registers a tag.
func (s *Service) CreateTag(ctx context.Context, name, tagType string) (*client.Tag, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	tag := &client.Tag{
		TagId:      uuid.NewString(),
		Name:       name,
		Type:       dbutils.NullString(tagType),
		CreateTime: dbutils.NullTime(time.Now().UTC()),
	}
	if err := s.dbClient.InsertTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags lists all tags.
func (s *Service) ListTags(ctx context.Context) ([]*client.Tag, error) {
	return s.dbClient.SelectTags(ctx, nil, []string{"name ASC"}, 0, 0)
}

// DeleteTag removes a tag and its bindings.
func (s *Service) DeleteTag(ctx context.Context, tagId string) error {
	if _, err := s.dbClient.GetTag(ctx, tagId); err != nil {
		return err
	}
	return s.dbClient.DeleteTag(ctx, tagId)
}

// --- credentials ---

// CredentialSpec is the user-facing credential document. The password
// arrives in plaintext exactly once, here, and is sealed immediately.
type CredentialSpec struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
}

// CreateCredential seals and stores a credential.
func (s *Service) CreateCredential(ctx context.Context, spec *CredentialSpec) (*client.Credential, error) {
	if spec.Username == "" || spec.Password == "" {
		return nil, commonerrors.NewBadRequest("username and password are required")
	}
	if spec.Priority <= 0 {
		spec.Priority = 100
	}
	sealed, err := s.vault.Seal(ctx, spec.Password)
	if err != nil {
		return nil, err
	}
	now := dbutils.NullTime(time.Now().UTC())
	credential := &client.Credential{
		CredentialId: uuid.NewString(),
		Username:     spec.Username,
		Secret:       sealed,
		KeyId:        vault.ActiveKeyId(sealed),
		Priority:     spec.Priority,
		Description:  dbutils.NullString(spec.Description),
		CreateTime:   now,
		UpdateTime:   now,
	}
	if err = s.dbClient.UpsertCredential(ctx, credential); err != nil {
		return nil, err
	}
	// the caller never gets the seal back
	credential.Secret = ""
	return credential, nil
}

// BindCredential attaches a credential to a tag with a binding priority.
func (s *Service) BindCredential(ctx context.Context, credentialId, tagId string, priority int) error {
	if _, err := s.dbClient.GetCredential(ctx, credentialId); err != nil {
		return err
	}
	if _, err := s.dbClient.GetTag(ctx, tagId); err != nil {
		return err
	}
	if priority <= 0 {
		priority = 100
	}
	return s.dbClient.BindCredentialTag(ctx, credentialId, tagId, priority)
}

// DeleteCredential removes a credential.
func (s *Service) DeleteCredential(ctx context.Context, credentialId string) error {
	credential, err := s.dbClient.GetCredential(ctx, credentialId)
	if err != nil {
		return err
	}
	if credential.IsSystem {
		return commonerrors.NewForbidden("system credentials cannot be deleted")
	}
	return s.dbClient.DeleteCredential(ctx, credentialId)
}

// CredentialCandidate is one ranked credential for a tag, counters included
// so callers can see the evidence behind the order.
type CredentialCandidate struct {
	CredentialId      string `json:"credential_id"`
	Username          string `json:"username"`
	EffectivePriority int    `json:"effective_priority"`
	SuccessCount      int64  `json:"success_count"`
	FailureCount      int64  `json:"failure_count"`
}

// SmartSelectCredentials returns the best n credentials bound to a tag.
func (s *Service) SmartSelectCredentials(ctx context.Context, tagId string, n int) ([]*CredentialCandidate, error) {
	if _, err := s.dbClient.GetTag(ctx, tagId); err != nil {
		return nil, err
	}
	ranked, err := s.resolver.SmartSelect(ctx, tagId, n)
	if err != nil {
		return nil, err
	}
	result := make([]*CredentialCandidate, 0, len(ranked))
	for _, candidate := range ranked {
		result = append(result, &CredentialCandidate{
			CredentialId:      candidate.CredentialId,
			Username:          candidate.Username,
			EffectivePriority: candidate.EffectivePriority,
			SuccessCount:      candidate.SuccessCount,
			FailureCount:      candidate.FailureCount,
		})
	}
	return result, nil
}

// OptimizeCredentialPriorities compacts the base priorities of the
// credentials bound to a tag without changing their resolution order.
func (s *Service) OptimizeCredentialPriorities(ctx context.Context, tagId string) error {
	if _, err := s.dbClient.GetTag(ctx, tagId); err != nil {
		return err
	}
	return s.resolver.OptimizePriorities(ctx, tagId)
}

// RotateVault re-seals every credential under a freshly minted key.
func (s *Service) RotateVault(ctx context.Context) (string, error) {
	keyId, err := s.vault.Rotate(ctx)
	if err != nil {
		return "", err
	}
	s.logs.System(logstore.LevelInfo, fmt.Sprintf("encryption key rotated, active key %s", keyId))
	return keyId, nil
}

// --- jobs and schedules ---

// JobSpec is the user-facing job document.
type JobSpec struct {
	Name              string            `json:"name"`
	Kind              string            `json:"kind"`
	DeviceIds         []string          `json:"device_ids,omitempty"`
	TagIds            []string          `json:"tag_ids,omitempty"`
	Parameters        map[string]any    `json:"parameters,omitempty"`
	Enabled           *bool             `json:"enabled,omitempty"`
	Fanout            int               `json:"fanout,omitempty"`
	MaxDurationSecond int               `json:"max_duration_second,omitempty"`
}

func validJobKind(kind string) bool {
	switch kind {
	case client.JobKindBackup, client.JobKindReachability, client.JobKindCommand, client.JobKindCustom:
		return true
	}
	return false
}

// CreateJob registers a job definition.
func (s *Service) CreateJob(ctx context.Context, spec *JobSpec) (*client.Job, error) {
	if err := ValidateName(spec.Name); err != nil {
		return nil, err
	}
	if !validJobKind(spec.Kind) {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid job kind %q", spec.Kind))
	}
	if len(spec.DeviceIds) == 0 && len(spec.TagIds) == 0 {
		return nil, commonerrors.NewBadRequest("job needs device_ids or tag_ids")
	}
	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}
	var parameters string
	if len(spec.Parameters) > 0 {
		parameters = string(jsonutil.MarshalSilently(spec.Parameters))
	}
	now := dbutils.NullTime(time.Now().UTC())
	job := &client.Job{
		JobId:             uuid.NewString(),
		Name:              spec.Name,
		Kind:              spec.Kind,
		DeviceIds:         dbutils.NullString(jsonutil.MarshalStrings(spec.DeviceIds)),
		TagIds:            dbutils.NullString(jsonutil.MarshalStrings(spec.TagIds)),
		Parameters:        dbutils.NullString(parameters),
		Enabled:           enabled,
		Fanout:            spec.Fanout,
		MaxDurationSecond: spec.MaxDurationSecond,
		CreateTime:        now,
		UpdateTime:        now,
	}
	if err := s.dbClient.UpsertJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// SetJobEnabled flips a job's enabled flag.
func (s *Service) SetJobEnabled(ctx context.Context, jobId string, enabled bool) error {
	if _, err := s.dbClient.GetJob(ctx, jobId); err != nil {
		return err
	}
	return s.dbClient.SetJobEnabled(ctx, jobId, enabled)
}

// ScheduleSpec is the user-facing schedule document.
type ScheduleSpec struct {
	JobId          string   `json:"job_id"`
	Kind           string   `json:"kind"`
	StartAt        string   `json:"start_at,omitempty"` // RFC3339, once schedules
	IntervalSecond int      `json:"interval_second,omitempty"`
	TimeOfDay      string   `json:"time_of_day,omitempty"`
	DaysOfWeek     []string `json:"days_of_week,omitempty"`
	CronExpr       string   `json:"cron_expr,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
}

// CreateSchedule attaches a recurrence to a job. The initial next_fire is
// computed here; afterwards only the dispatcher advances it.
func (s *Service) CreateSchedule(ctx context.Context, spec *ScheduleSpec) (*client.Schedule, error) {
	if _, err := s.dbClient.GetJob(ctx, spec.JobId); err != nil {
		return nil, err
	}
	timezone := spec.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	schedule := &client.Schedule{
		ScheduleId:     uuid.NewString(),
		JobId:          spec.JobId,
		Kind:           spec.Kind,
		IntervalSecond: spec.IntervalSecond,
		TimeOfDay:      dbutils.NullString(spec.TimeOfDay),
		DaysOfWeek:     dbutils.NullString(jsonutil.MarshalStrings(spec.DaysOfWeek)),
		CronExpr:       dbutils.NullString(spec.CronExpr),
		Timezone:       timezone,
		Enabled:        true,
	}

	now := time.Now().UTC()
	if spec.Kind == client.ScheduleOnce {
		fireAt := now
		if spec.StartAt != "" {
			parsed, err := time.Parse(time.RFC3339, spec.StartAt)
			if err != nil {
				return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid start_at: %v", err))
			}
			fireAt = parsed.UTC()
		}
		schedule.NextFire = dbutils.NullTime(fireAt)
	} else {
		next, err := dispatcher.NextFire(schedule, now)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, commonerrors.NewBadRequest("schedule would never fire")
		}
		schedule.NextFire = dbutils.NullTime(next.UTC())
	}

	if err := s.dbClient.UpsertSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// DeleteSchedule removes a schedule.
func (s *Service) DeleteSchedule(ctx context.Context, scheduleId string) error {
	if _, err := s.dbClient.GetSchedule(ctx, scheduleId); err != nil {
		return err
	}
	return s.dbClient.DeleteSchedule(ctx, scheduleId)
}

// --- runs ---

// SubmitJob enqueues a run of a job right now, outside any schedule.
func (s *Service) SubmitJob(ctx context.Context, jobId string) (*client.JobRun, error) {
	job, err := s.dbClient.GetJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if !job.Enabled {
		return nil, commonerrors.NewDisabled(job.Name)
	}
	deviceIds, err := s.resolveJobDevices(ctx, job)
	if err != nil {
		return nil, err
	}
	if len(deviceIds) == 0 {
		return nil, commonerrors.NewNoDevices(job.Name)
	}
	run := &client.JobRun{
		RunId:       uuid.NewString(),
		JobId:       job.JobId,
		JobKind:     job.Kind,
		Status:      client.RunQueued,
		Priority:    queue.PriorityNormal,
		DeviceIds:   dbutils.NullString(jsonutil.MarshalStrings(deviceIds)),
		EnqueueTime: dbutils.NullTime(time.Now().UTC()),
	}
	if err = s.dbClient.InsertJobRun(ctx, run); err != nil {
		return nil, err
	}
	if err = s.queue.Enqueue(ctx, run.RunId, run.Priority); err != nil {
		if delErr := s.dbClient.DeleteJobRun(ctx, run.RunId); delErr != nil {
			klog.ErrorS(delErr, "failed to compensate unqueued run", "RunId", run.RunId)
		}
		return nil, err
	}
	s.logs.Job(run.RunId, logstore.LevelInfo,
		fmt.Sprintf("run submitted manually: job=%s devices=%d", job.JobId, len(deviceIds)))
	return run, nil
}

func (s *Service) resolveJobDevices(ctx context.Context, job *client.Job) ([]string, error) {
	seen := sets.NewSet()
	var deviceIds []string
	for _, deviceId := range jsonutil.UnmarshalStrings(dbutils.ParseNullString(job.DeviceIds)) {
		if !seen.Has(deviceId) {
			seen.Insert(deviceId)
			deviceIds = append(deviceIds, deviceId)
		}
	}
	tagIds := jsonutil.UnmarshalStrings(dbutils.ParseNullString(job.TagIds))
	if len(tagIds) > 0 {
		devices, err := s.dbClient.SelectDevicesByTags(ctx, tagIds)
		if err != nil {
			return nil, err
		}
		for _, dev := range devices {
			if !seen.Has(dev.DeviceId) {
				seen.Insert(dev.DeviceId)
				deviceIds = append(deviceIds, dev.DeviceId)
			}
		}
	}
	return deviceIds, nil
}

// CancelRun requests cancellation. A queued run settles immediately; a
// running one flips the flag the worker checks between devices. Cancelling
// a terminal run is a conflict.
func (s *Service) CancelRun(ctx context.Context, runId string) error {
	run, err := s.dbClient.GetJobRun(ctx, runId)
	if err != nil {
		return err
	}
	if client.IsTerminalRunStatus(run.Status) {
		return commonerrors.NewTerminal(runId)
	}
	if err = s.dbClient.RequestJobRunCancel(ctx, runId); err != nil {
		return err
	}
	if run.Status == client.RunQueued {
		// settle now; the queue delivery becomes a duplicate no-op
		if err = s.dbClient.FinishJobRun(ctx, runId, client.RunCancelled, "cancelled before start", 0); err != nil {
			return commonerrors.IgnoreNotFound(err)
		}
	}
	s.logs.Job(runId, logstore.LevelInfo, "cancellation requested")
	return nil
}

// RunDetail is a run with its per-device outcomes.
type RunDetail struct {
	Run        *client.JobRun           `json:"run"`
	SubResults []*client.DeviceSubResult `json:"sub_results"`
}

// GetRun returns one run with its sub-results.
func (s *Service) GetRun(ctx context.Context, runId string) (*RunDetail, error) {
	run, err := s.dbClient.GetJobRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	subResults, err := s.dbClient.SelectSubResults(ctx, runId)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, SubResults: subResults}, nil
}

// ListRuns pages runs, optionally filtered by job and status, newest first.
func (s *Service) ListRuns(ctx context.Context, jobId, status string, limit, offset int) ([]*client.JobRun, int, error) {
	conds := sqrl.And{}
	if jobId != "" {
		conds = append(conds, sqrl.Eq{"job_id": jobId})
	}
	if status != "" {
		conds = append(conds, sqrl.Eq{"status": status})
	}
	var query sqrl.Sqlizer
	if len(conds) > 0 {
		query = conds
	}
	runs, err := s.dbClient.SelectJobRuns(ctx, query, []string{"enqueue_time DESC", "id DESC"}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.dbClient.CountJobRuns(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// --- snapshots ---

// GetSnapshot returns a stored configuration body.
func (s *Service) GetSnapshot(ctx context.Context, contentHash string) (string, error) {
	return s.snapshots.Get(ctx, contentHash)
}

// ListSnapshots lists a device's captures, newest first.
func (s *Service) ListSnapshots(ctx context.Context, deviceId string, limit, offset int) ([]*client.SnapshotRef, error) {
	return s.dbClient.SelectSnapshotRefs(ctx,
		sqrl.Eq{"device_id": deviceId}, []string{"create_time DESC", "id DESC"}, limit, offset)
}

// DiffSnapshots compares two captures of one device. Both hashes must have
// been captured from that device.
func (s *Service) DiffSnapshots(ctx context.Context, deviceId, fromHash, toHash string) (*snapshots.Diff, error) {
	return s.snapshots.Compare(ctx, deviceId, fromHash, toHash)
}

// --- logs ---

// ListLogs pages log entries filtered by run, device, source and level.
func (s *Service) ListLogs(ctx context.Context, runId, deviceId, source, level string, limit, offset int) ([]*client.LogEntry, error) {
	conds := sqrl.And{}
	if runId != "" {
		conds = append(conds, sqrl.Eq{"job_run_id": runId})
	}
	if deviceId != "" {
		conds = append(conds, sqrl.Eq{"device_id": deviceId})
	}
	if source != "" {
		conds = append(conds, sqrl.Eq{"source": source})
	}
	if level != "" {
		conds = append(conds, sqrl.Eq{"level": level})
	}
	var query sqrl.Sqlizer
	if len(conds) > 0 {
		query = conds
	}
	return s.dbClient.SelectLogEntries(ctx, query, []string{"ts DESC", "id DESC"}, limit, offset)
}

// --- queue administration ---

// QueueStatus reports broker depths for observability endpoints.
type QueueStatus struct {
	Pending     [queue.NumPriorities]int64 `json:"pending"`
	DeadLetters []*queue.DeadItem          `json:"dead_letters"`
}

// GetQueueStatus returns pending depths and parked items.
func (s *Service) GetQueueStatus(ctx context.Context) (*QueueStatus, error) {
	depths, err := s.queue.Pending(ctx)
	if err != nil {
		return nil, err
	}
	dead, err := s.queue.DeadLetters(ctx, 100)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{Pending: depths, DeadLetters: dead}, nil
}

// RedriveDeadLetter returns a parked run to its pending queue.
func (s *Service) RedriveDeadLetter(ctx context.Context, runId string) error {
	return s.queue.Redrive(ctx, runId)
}
