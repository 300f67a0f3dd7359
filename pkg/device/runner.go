/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/credentials"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/backoff"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/netutil"
)

// Outcome is the result of running a job against one device.
type Outcome struct {
	Status       string
	CredentialId string
	Output       string
	Err          error
	Duration     time.Duration
}

// Runner executes job commands against single devices: reachability
// pre-check, credential walk, retry policy, session logging.
type Runner struct {
	resolver *credentials.Resolver
	logs     *logstore.Store

	reachTimeout   time.Duration
	attemptTimeout time.Duration
	retryMax       uint64
	retryBaseDelay time.Duration

	// newAdapter is swappable in tests
	newAdapter func(transport string) (Adapter, error)
}

// NewRunner builds a Runner on the shared resolver and log store.
func NewRunner(resolver *credentials.Resolver, logs *logstore.Store) *Runner {
	return &Runner{
		resolver:       resolver,
		logs:           logs,
		reachTimeout:   time.Duration(commonconfig.GetReachabilityTimeoutSecond()) * time.Second,
		attemptTimeout: time.Duration(commonconfig.GetAttemptTimeoutSecond()) * time.Second,
		retryMax:       uint64(commonconfig.GetRetryMax()),
		retryBaseDelay: time.Duration(commonconfig.GetRetryBaseDelaySecond()) * time.Second,
		newAdapter:     NewAdapter,
	}
}

// Execute runs the commands of one job against one device and returns a
// terminal outcome. It never panics outward and never returns a nil outcome.
func (r *Runner) Execute(ctx context.Context, runId string, dev *client.Device, commands []string) *Outcome {
	start := time.Now()
	outcome := r.execute(ctx, runId, dev, commands)
	outcome.Duration = time.Since(start)
	return outcome
}

func (r *Runner) execute(ctx context.Context, runId string, dev *client.Device, commands []string) *Outcome {
	// cheap TCP probe first so a dead device costs one dial, not a full
	// credential walk with per-attempt timeouts
	if err := netutil.CheckReachable(ctx, dev.Host, dev.Port, r.reachTimeout); err != nil {
		r.session(runId, dev.DeviceId, logstore.LevelWarning,
			fmt.Sprintf("reachability probe failed: %v", err))
		return &Outcome{Status: client.SubUnreachable, Err: err}
	}
	r.session(runId, dev.DeviceId, logstore.LevelDebug, "reachability probe ok")

	candidates, err := r.resolver.Resolve(ctx, dev.DeviceId)
	if err != nil {
		return &Outcome{Status: client.SubCommandError, Err: err}
	}
	if len(candidates) == 0 {
		r.session(runId, dev.DeviceId, logstore.LevelError, "no credentials match this device")
		return &Outcome{Status: client.SubAuthFailure,
			Err: fmt.Errorf("no credentials match device %s", dev.DeviceId)}
	}

	var lastOutcome *Outcome
	for _, candidate := range credentials.RankByEvidence(candidates) {
		outcome := r.tryCredential(ctx, runId, dev, candidate, commands)
		if outcome.Status == client.SubSuccess {
			r.resolver.RecordSuccess(ctx, candidate.CredentialId)
			return outcome
		}
		if outcome.Status == client.SubAuthFailure {
			r.resolver.RecordFailure(ctx, candidate.CredentialId)
			r.session(runId, dev.DeviceId, logstore.LevelInfo,
				fmt.Sprintf("credential %s rejected, trying next", candidate.CredentialId))
			lastOutcome = outcome
			continue
		}
		// non-auth failures are device problems; walking more credentials
		// will not fix a timeout or a broken transport
		return outcome
	}
	return lastOutcome
}

// tryCredential drives one credential through the retry policy. Timeouts
// and protocol errors retry with jittered exponential backoff; everything
// else is final for this credential.
func (r *Runner) tryCredential(ctx context.Context, runId string, dev *client.Device,
	candidate *credentials.Candidate, commands []string) *Outcome {
	password, err := r.resolver.Password(candidate)
	if err != nil {
		return &Outcome{Status: client.SubCommandError, CredentialId: candidate.CredentialId, Err: err}
	}
	creds := Credentials{
		CredentialId: candidate.CredentialId,
		Username:     candidate.Username,
		Password:     password,
	}

	var outcome *Outcome
	op := func() error {
		outcome = r.attempt(ctx, runId, dev, creds, commands)
		if outcome.Status == client.SubSuccess {
			return nil
		}
		if outcome.Status == client.SubAborted {
			// the run was cancelled or hit its deadline; no retry helps
			return backoff.Permanent(outcome.Err)
		}
		kind := Classify(outcome.Err)
		if kind.Retryable() {
			return outcome.Err
		}
		return backoff.Permanent(outcome.Err)
	}
	notify := func(err error, wait time.Duration) {
		r.session(runId, dev.DeviceId, logstore.LevelInfo,
			fmt.Sprintf("attempt failed (%v), retrying in %s", err, wait.Round(time.Millisecond)))
	}
	// the returned error is already folded into outcome
	_ = backoff.RetryNotifyWithContext(ctx, op, r.retryMax, r.retryBaseDelay, 0.2, notify)
	return outcome
}

// attempt is one full session: open, authenticate, run all commands.
func (r *Runner) attempt(ctx context.Context, runId string, dev *client.Device,
	creds Credentials, commands []string) (outcome *Outcome) {
	defer func() {
		if p := recover(); p != nil {
			klog.Errorf("device session panic for %s: %v", dev.DeviceId, p)
			outcome = &Outcome{Status: client.SubCommandError, CredentialId: creds.CredentialId,
				Err: fmt.Errorf("session panic: %v", p)}
		}
	}()

	// the attempt timeout bounds one session; the parent ctx carries the
	// run deadline and cancellation
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	adapter, err := r.newAdapter(dev.Transport)
	if err != nil {
		return &Outcome{Status: client.SubCommandError, CredentialId: creds.CredentialId, Err: err}
	}
	defer adapter.Close()

	target := Target{DeviceId: dev.DeviceId, Host: dev.Host, Port: dev.Port}
	if err = adapter.Open(attemptCtx, target); err != nil {
		return r.failed(ctx, runId, dev.DeviceId, creds.CredentialId, "open", err)
	}
	r.session(runId, dev.DeviceId, logstore.LevelDebug,
		fmt.Sprintf("%s session opened to %s", dev.Transport, netutil.JoinHostPort(dev.Host, dev.Port)))

	if err = adapter.Authenticate(attemptCtx, creds); err != nil {
		return r.failed(ctx, runId, dev.DeviceId, creds.CredentialId, "authenticate", err)
	}
	r.session(runId, dev.DeviceId, logstore.LevelDebug,
		fmt.Sprintf("authenticated as %s", creds.Username))

	outputs := make([]string, 0, len(commands))
	for _, command := range commands {
		r.session(runId, dev.DeviceId, logstore.LevelDebug, fmt.Sprintf("sent: %s", command))
		output, err := adapter.Run(attemptCtx, command)
		if err != nil {
			return r.failed(ctx, runId, dev.DeviceId, creds.CredentialId, "run", err)
		}
		outputs = append(outputs, output)
	}
	return &Outcome{Status: client.SubSuccess, CredentialId: creds.CredentialId,
		Output: strings.Join(outputs, "\n")}
}

// failed classifies one failed phase. A failure observed after the run
// context ended is the cancellation surfacing through the adapter, not a
// device fault: it lands as aborted, whatever the raw error looks like.
func (r *Runner) failed(ctx context.Context, runId, deviceId, credentialId, phase string, err error) *Outcome {
	kind := Classify(err)
	if ctx.Err() != nil {
		kind = FailureAborted
	}
	r.session(runId, deviceId, logstore.LevelWarning,
		fmt.Sprintf("%s failed (%s): %v", phase, kind, err))
	return &Outcome{Status: SubStatusFor(kind), CredentialId: credentialId, Err: err}
}

// SubStatusFor maps a failure classification to the sub-result status it
// lands as. Protocol errors surface as command errors once the retry budget
// is spent; the distinction only matters for retry policy.
func SubStatusFor(kind FailureKind) string {
	switch kind {
	case FailureNone:
		return client.SubSuccess
	case FailureUnreachable:
		return client.SubUnreachable
	case FailureAuth:
		return client.SubAuthFailure
	case FailureTimeout:
		return client.SubTimeout
	case FailureProtocolError, FailureCommandError:
		return client.SubCommandError
	case FailureAborted:
		return client.SubAborted
	}
	return client.SubCommandError
}

func (r *Runner) session(runId, deviceId, level, message string) {
	if r.logs != nil {
		r.logs.Session(runId, deviceId, level, message)
	}
}
