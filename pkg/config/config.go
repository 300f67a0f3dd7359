/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

func init() {
	for key, env := range envBindings {
		// error only fires on an empty key name
		_ = viper.BindEnv(key, env)
	}
}

// SetValue sets a configuration value for the specified key. Intended for tests.
func SetValue(key string, value interface{}) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path. An empty path
// is fine: every key can also arrive through the environment.
func LoadConfig(path string) error {
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getFromFile(configPath, item string) string {
	path := getString(configPath, "")
	data, err := os.ReadFile(filepath.Join(path, item))
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\r\n")
}

// GetDatabaseURL returns the catalog DSN.
func GetDatabaseURL() string {
	return getString(databaseURL, "")
}

// GetDBMaxOpenConns returns the maximum number of open database connections.
func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 100)
}

// GetDBMaxIdleConns returns the maximum number of idle database connections.
func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 10)
}

// GetDBMaxLifetimeSecond returns the maximum lifetime of database connections in seconds.
func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetimeSecond, 600)
}

// GetDBRequestTimeoutSecond returns the database request timeout in seconds.
func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeout, 20)
}

// GetQueueURL returns the broker DSN.
func GetQueueURL() string {
	return getString(queueURL, "")
}

// GetQueueVisibilitySecond returns the claim invisibility window in seconds.
func GetQueueVisibilitySecond() int {
	return getInt(queueVisibility, 120)
}

// GetQueueMaxAttempts returns how many deliveries an item gets before dead-letter.
func GetQueueMaxAttempts() int {
	return getInt(queueMaxAttempts, 3)
}

// GetQueueClaimWaitSecond returns the long-poll interval for claim.
func GetQueueClaimWaitSecond() int {
	return getInt(queueClaimWaitSecond, 5)
}

// GetQueueRetryDelaySecond returns how long a nacked run stays invisible
// before it becomes deliverable again.
func GetQueueRetryDelaySecond() int {
	return getInt(queueRetryDelay, 30)
}

// GetEncryptionSalt returns the vault key-derivation salt.
func GetEncryptionSalt() string {
	if salt := getString(encryptionSalt, ""); salt != "" {
		return salt
	}
	return getFromFile(vaultSecretPath, "salt")
}

// GetVaultMasterSecret returns the vault master secret.
func GetVaultMasterSecret() string {
	if secret := getString(vaultMasterSecret, ""); secret != "" {
		return secret
	}
	return getFromFile(vaultSecretPath, "master")
}

// GetLogDir returns the directory for on-disk log segments.
func GetLogDir() string {
	return getString(logDir, "/var/log/netraven")
}

// GetLogRetentionDays returns the retention for job/system log entries.
func GetLogRetentionDays() int {
	return getInt(logRetentionDays, 30)
}

// GetSessionLogRetentionDays returns the retention for session/connection log entries.
func GetSessionLogRetentionDays() int {
	return getInt(sessionLogRetentionDays, 14)
}

// GetLogRingSize returns the capacity of the in-process log ring.
func GetLogRingSize() int {
	return getInt(logRingSize, 4096)
}

// GetRedactPatternsPath returns the path of the extra redaction regex list.
func GetRedactPatternsPath() string {
	return getString(redactPatternsPath, "")
}

// GetWorkerConcurrency returns the number of worker loops per process.
func GetWorkerConcurrency() int {
	return getInt(workerConcurrency, 4)
}

// GetDeviceFanout returns the per-run cap on concurrent device sessions.
func GetDeviceFanout() int {
	return getInt(deviceFanout, 5)
}

// GetJobMaxDurationSecond returns the global per-run deadline in seconds.
func GetJobMaxDurationSecond() int {
	return getInt(jobMaxDuration, 3600)
}

// GetRetryMax returns the per-device retry budget for retryable failures.
func GetRetryMax() int {
	return getInt(retryMax, 3)
}

// GetRetryBaseDelaySecond returns the initial backoff delay in seconds.
func GetRetryBaseDelaySecond() int {
	return getInt(retryBaseDelay, 5)
}

// GetReachabilityTimeoutSecond returns T_r.
func GetReachabilityTimeoutSecond() int {
	return getInt(reachabilityTimeout, 5)
}

// GetOpenTimeoutSecond returns T_o.
func GetOpenTimeoutSecond() int {
	return getInt(openTimeout, 30)
}

// GetCommandTimeoutSecond returns T_c.
func GetCommandTimeoutSecond() int {
	return getInt(commandTimeout, 60)
}

// GetAttemptTimeoutSecond returns T_a.
func GetAttemptTimeoutSecond() int {
	return getInt(attemptTimeout, 300)
}

// GetOutputLimitBytes returns the bounded session output buffer size.
func GetOutputLimitBytes() int {
	return getInt(outputLimitBytes, 1<<20)
}

// GetDispatcherTickSecond returns the dispatcher scan interval.
func GetDispatcherTickSecond() int {
	return getInt(dispatcherTick, 10)
}

// GetDispatcherLeaseTTLSecond returns the dispatcher lease TTL.
func GetDispatcherLeaseTTLSecond() int {
	return getInt(dispatcherLease, 30)
}

// GetServerPort returns the API server port.
func GetServerPort() int {
	return getInt(serverPort, 8080)
}

// IsHealthCheckEnabled returns whether health checks are enabled.
func IsHealthCheckEnabled() bool {
	return getBool(healthCheckEnable, true)
}
