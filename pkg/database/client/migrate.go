/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"time"

	"k8s.io/klog/v2"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

// gorm models used only for schema migration. The sqlx structs in types.go
// remain the read/write surface; these mirror them column-for-column.

type deviceModel struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	DeviceId     string `gorm:"uniqueIndex;size:64"`
	Hostname     string `gorm:"uniqueIndex;size:255"`
	Host         string `gorm:"size:255"`
	Transport    string `gorm:"size:16"`
	Port         int
	Description  *string
	Model        *string `gorm:"size:128"`
	SerialNumber *string `gorm:"size:128"`
	OwnerId      *string `gorm:"size:64"`
	ReachStatus  *string `gorm:"size:32"`
	ReachTime    *time.Time
	ReachMessage *string
	CreateTime   *time.Time
	UpdateTime   *time.Time
}

func (deviceModel) TableName() string { return TPDevices }

type tagModel struct {
	Id         int64  `gorm:"primaryKey;autoIncrement"`
	TagId      string `gorm:"uniqueIndex;size:64"`
	Name       string `gorm:"uniqueIndex;size:128"`
	Type       *string
	CreateTime *time.Time
}

func (tagModel) TableName() string { return TPTags }

type deviceTagModel struct {
	DeviceId string `gorm:"primaryKey;size:64"`
	TagId    string `gorm:"primaryKey;size:64"`
}

func (deviceTagModel) TableName() string { return TPDeviceTags }

type credentialModel struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	CredentialId string `gorm:"uniqueIndex;size:64"`
	Username     string `gorm:"size:128"`
	Secret       string
	KeyId        string `gorm:"size:64"`
	Priority     int
	SuccessCount int64
	FailureCount int64
	LastUsed     *time.Time
	LastSuccess  *time.Time
	Description  *string
	IsSystem     bool
	CreateTime   *time.Time
	UpdateTime   *time.Time
}

func (credentialModel) TableName() string { return TPCredentials }

type credentialTagModel struct {
	CredentialId string `gorm:"primaryKey;size:64"`
	TagId        string `gorm:"primaryKey;size:64"`
	Priority     int
}

func (credentialTagModel) TableName() string { return TPCredentialTags }

type jobModel struct {
	Id                int64  `gorm:"primaryKey;autoIncrement"`
	JobId             string `gorm:"uniqueIndex;size:64"`
	Name              string `gorm:"uniqueIndex;size:128"`
	Kind              string `gorm:"size:32"`
	DeviceIds         *string
	TagIds            *string
	Parameters        *string
	Enabled           bool
	IsSystemJob       bool
	Fanout            int
	MaxDurationSecond int
	CreateTime        *time.Time
	UpdateTime        *time.Time
}

func (jobModel) TableName() string { return TPJobs }

type scheduleModel struct {
	Id             int64  `gorm:"primaryKey;autoIncrement"`
	ScheduleId     string `gorm:"uniqueIndex;size:64"`
	JobId          string `gorm:"index;size:64"`
	Kind           string `gorm:"size:16"`
	IntervalSecond int
	TimeOfDay      *string `gorm:"size:8"`
	DaysOfWeek     *string
	CronExpr       *string
	Timezone       string `gorm:"size:64"`
	Enabled        bool
	NextFire       *time.Time `gorm:"index"`
	LastFired      *time.Time
}

func (scheduleModel) TableName() string { return TPSchedules }

type jobRunModel struct {
	Id              int64  `gorm:"primaryKey;autoIncrement"`
	RunId           string `gorm:"uniqueIndex;size:64"`
	JobId           string `gorm:"index;size:64"`
	JobKind         string `gorm:"size:32"`
	Status          string `gorm:"index;size:32"`
	Priority        int
	DeviceIds       *string
	CancelRequested bool
	EnqueueTime     *time.Time
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMs      int64
	Message         *string
}

func (jobRunModel) TableName() string { return TPJobRuns }

type deviceSubResultModel struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	RunId        string `gorm:"uniqueIndex:idx_run_device;size:64"`
	DeviceId     string `gorm:"uniqueIndex:idx_run_device;size:64"`
	CredentialId *string
	Status       string `gorm:"size:32"`
	ErrorMessage *string
	SnapshotId   *string
	DurationMs   int64
	UpdateTime   *time.Time
}

func (deviceSubResultModel) TableName() string { return TPSubResults }

type snapshotModel struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	ContentHash string `gorm:"uniqueIndex;size:64"`
	Content     []byte
	FirstSeen   *time.Time
}

func (snapshotModel) TableName() string { return TPSnapshots }

type snapshotRefModel struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	ContentHash string `gorm:"index;size:64"`
	RunId       string `gorm:"index;size:64"`
	DeviceId    string `gorm:"index;size:64"`
	CreateTime  *time.Time
}

func (snapshotRefModel) TableName() string { return TPSnapshotRefs }

type logEntryModel struct {
	Id       int64      `gorm:"primaryKey;autoIncrement"`
	Ts       *time.Time `gorm:"index"`
	Level    string     `gorm:"size:16"`
	Source   string     `gorm:"index;size:32"`
	JobRunId *string    `gorm:"index;size:64"`
	DeviceId *string    `gorm:"index;size:64"`
	Message  string
	Meta     *string
}

func (logEntryModel) TableName() string { return TPLogEntries }

type encryptionKeyModel struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	KeyId       string `gorm:"uniqueIndex;size:64"`
	Active      bool
	Fingerprint string `gorm:"size:128"`
	Description *string
	CreateTime  *time.Time
	RetiredTime *time.Time
}

func (encryptionKeyModel) TableName() string { return TPEncryptionKeys }

type leaseModel struct {
	Name       string `gorm:"primaryKey;size:64"`
	Holder     string `gorm:"size:128"`
	ExpireTime *time.Time
}

func (leaseModel) TableName() string { return TPLeases }

// Migrate creates or updates every catalog table.
func (c *Client) Migrate() error {
	if c == nil || c.gorm == nil {
		return commonerrors.NewInternalError("The client of db has not been initialized")
	}
	err := c.gorm.AutoMigrate(
		&deviceModel{},
		&tagModel{},
		&deviceTagModel{},
		&credentialModel{},
		&credentialTagModel{},
		&jobModel{},
		&scheduleModel{},
		&jobRunModel{},
		&deviceSubResultModel{},
		&snapshotModel{},
		&snapshotRefModel{},
		&logEntryModel{},
		&encryptionKeyModel{},
		&leaseModel{},
	)
	if err != nil {
		return err
	}
	klog.Infof("catalog schema migrated")
	return nil
}
