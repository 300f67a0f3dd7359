/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package device talks to managed network devices over SSH, telnet and REST
// behind one adapter interface, classifies every failure, and retries the
// transient ones.
package device

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies what went wrong with a device interaction. The
// kind, not the raw error, decides retry behavior and the sub-result status.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureUnreachable   FailureKind = "unreachable"
	FailureAuth          FailureKind = "auth_failure"
	FailureTimeout       FailureKind = "timeout"
	FailureProtocolError FailureKind = "protocol_error"
	FailureCommandError  FailureKind = "command_error"
	FailureAborted       FailureKind = "aborted"
)

// Retryable reports whether another attempt may help. Auth failures never
// retry: hammering a device with bad credentials trips lockouts.
func (k FailureKind) Retryable() bool {
	return k == FailureTimeout || k == FailureProtocolError
}

// Failure wraps an error with its classification.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a classified failure.
func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// Classify extracts the failure kind of err, defaulting to protocol_error
// for anything unclassified so unknown breakage stays retryable.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	if errors.Is(err, context.Canceled) {
		return FailureAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureProtocolError
}

// Target identifies one device endpoint.
type Target struct {
	DeviceId string
	Host     string
	Port     int
}

// Credentials is one username/password pair to try.
type Credentials struct {
	CredentialId string
	Username     string
	Password     string
}

// Adapter is one transport session with a device. The lifecycle is strictly
// Open, Authenticate, Run (any number of times), Close. Open dials without
// credentials so unreachable and auth failures stay distinguishable.
type Adapter interface {
	// Open establishes the transport connection.
	Open(ctx context.Context, target Target) error

	// Authenticate proves the credentials on the open connection.
	Authenticate(ctx context.Context, creds Credentials) error

	// Run executes one command and returns its output, truncated to the
	// configured output limit.
	Run(ctx context.Context, command string) (string, error)

	// Close tears the session down. Safe to call at any point after Open.
	Close() error
}

// NewAdapter returns the adapter for a transport kind.
func NewAdapter(transport string) (Adapter, error) {
	switch transport {
	case "ssh":
		return newSSHAdapter(), nil
	case "telnet":
		return newTelnetAdapter(), nil
	case "rest":
		return newRESTAdapter(), nil
	}
	return nil, fmt.Errorf("unsupported transport %q", transport)
}
