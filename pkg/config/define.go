/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

// viper key -> environment variable. Every key can be set either from the
// -config YAML file or from the environment; the environment wins.
const (
	databaseURL          = "database.url"
	dbMaxOpenConns       = "database.max_open_conns"
	dbMaxIdleConns       = "database.max_idle_conns"
	dbMaxLifetimeSecond  = "database.max_lifetime_second"
	dbRequestTimeout     = "database.request_timeout_second"
	queueURL             = "queue.url"
	queueVisibility      = "queue.visibility_second"
	queueMaxAttempts     = "queue.max_attempts"
	queueClaimWaitSecond = "queue.claim_wait_second"
	queueRetryDelay      = "queue.retry_delay_second"

	encryptionSalt       = "vault.encryption_salt"
	vaultMasterSecret    = "vault.master_secret"
	vaultSecretPath      = "vault.secret_path"

	logDir                  = "log.dir"
	logRetentionDays        = "log.retention_days"
	sessionLogRetentionDays = "log.session_retention_days"
	logRingSize             = "log.ring_size"
	redactPatternsPath      = "log.redact_patterns"

	workerConcurrency   = "worker.concurrency"
	deviceFanout        = "worker.device_fanout"
	jobMaxDuration      = "worker.job_max_duration_second"
	retryMax            = "device.retry_max"
	retryBaseDelay      = "device.retry_base_delay_second"
	reachabilityTimeout = "device.reachability_timeout_second"
	openTimeout         = "device.open_timeout_second"
	commandTimeout      = "device.command_timeout_second"
	attemptTimeout      = "device.attempt_timeout_second"
	outputLimitBytes    = "device.output_limit_bytes"

	dispatcherTick  = "dispatcher.tick_second"
	dispatcherLease = "dispatcher.lease_ttl_second"

	serverPort        = "server.port"
	healthCheckEnable = "server.health_check_enable"
)

// environment variable names recognized by the deployment (§6 of the
// architecture notes); bound to the viper keys above at package init.
var envBindings = map[string]string{
	databaseURL:             "DATABASE_URL",
	queueURL:                "QUEUE_URL",
	encryptionSalt:          "ENCRYPTION_SALT",
	vaultMasterSecret:       "VAULT_MASTER_SECRET",
	logDir:                  "LOG_DIR",
	workerConcurrency:       "WORKER_CONCURRENCY",
	deviceFanout:            "DEVICE_FANOUT",
	retryMax:                "RETRY_MAX",
	retryBaseDelay:          "RETRY_BASE_DELAY_SECS",
	jobMaxDuration:          "JOB_MAX_DURATION_SECS",
	logRetentionDays:        "LOG_RETENTION_DAYS",
	sessionLogRetentionDays: "SESSION_LOG_RETENTION_DAYS",
	redactPatternsPath:      "REDACT_PATTERNS",
}
