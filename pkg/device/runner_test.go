/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"context"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
)

// scriptedAdapter answers commands from a fixed table and surfaces context
// errors the way a real transport would.
type scriptedAdapter struct {
	outputs map[string]string
}

func (a *scriptedAdapter) Open(ctx context.Context, target Target) error {
	return ctx.Err()
}

func (a *scriptedAdapter) Authenticate(ctx context.Context, creds Credentials) error {
	return ctx.Err()
}

func (a *scriptedAdapter) Run(ctx context.Context, command string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return a.outputs[command], nil
}

func (a *scriptedAdapter) Close() error {
	return nil
}

func newTestRunner(adapter Adapter) *Runner {
	return &Runner{
		attemptTimeout: time.Minute,
		newAdapter: func(string) (Adapter, error) {
			return adapter, nil
		},
	}
}

func TestAttemptCombinesCommandOutputs(t *testing.T) {
	runner := newTestRunner(&scriptedAdapter{outputs: map[string]string{
		"show version": "Version 17.3",
		"show clock":   "10:00:00 UTC",
	}})
	dev := &client.Device{DeviceId: "dev-1", Host: "10.0.0.1", Port: 22, Transport: "ssh"}

	outcome := runner.attempt(context.Background(), "run-1", dev,
		Credentials{CredentialId: "cred-a", Username: "admin"},
		[]string{"show version", "show clock"})

	assert.Equal(t, outcome.Status, client.SubSuccess)
	assert.Equal(t, outcome.Output, "Version 17.3\n10:00:00 UTC")
}

func TestAttemptAbortsOnCancelledRun(t *testing.T) {
	runner := newTestRunner(&scriptedAdapter{})
	dev := &client.Device{DeviceId: "dev-1", Host: "10.0.0.1", Port: 22, Transport: "ssh"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := runner.attempt(ctx, "run-1", dev,
		Credentials{CredentialId: "cred-a", Username: "admin"}, []string{"show version"})

	// cancellation is not a device fault: aborted, never timeout or a
	// retryable protocol error
	assert.Equal(t, outcome.Status, client.SubAborted)
	assert.Assert(t, outcome.Err != nil)
}

func TestAttemptClassifiesExpiredRunDeadlineAsAborted(t *testing.T) {
	runner := newTestRunner(&scriptedAdapter{})
	dev := &client.Device{DeviceId: "dev-1", Host: "10.0.0.1", Port: 22, Transport: "ssh"}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	outcome := runner.attempt(ctx, "run-1", dev,
		Credentials{CredentialId: "cred-a", Username: "admin"}, []string{"show version"})

	assert.Equal(t, outcome.Status, client.SubAborted)
}
