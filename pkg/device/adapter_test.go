/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gotest.tools/assert"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
)

func TestNewAdapterByTransport(t *testing.T) {
	for _, transport := range []string{"ssh", "telnet", "rest"} {
		adapter, err := NewAdapter(transport)
		assert.NilError(t, err)
		assert.Assert(t, adapter != nil)
	}
	_, err := NewAdapter("snmp")
	assert.ErrorContains(t, err, "unsupported transport")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Classify(nil), FailureNone)
	assert.Equal(t, Classify(NewFailure(FailureAuth, fmt.Errorf("denied"))), FailureAuth)
	assert.Equal(t, Classify(context.DeadlineExceeded), FailureTimeout)
	assert.Equal(t, Classify(context.Canceled), FailureAborted)
	assert.Equal(t, Classify(fmt.Errorf("something odd")), FailureProtocolError)

	// wrapped failures still classify
	wrapped := fmt.Errorf("session: %w", NewFailure(FailureUnreachable, fmt.Errorf("refused")))
	assert.Equal(t, Classify(wrapped), FailureUnreachable)
}

func TestRetryable(t *testing.T) {
	assert.Assert(t, FailureTimeout.Retryable())
	assert.Assert(t, FailureProtocolError.Retryable())
	assert.Assert(t, !FailureAuth.Retryable())
	assert.Assert(t, !FailureUnreachable.Retryable())
	assert.Assert(t, !FailureCommandError.Retryable())
	assert.Assert(t, !FailureAborted.Retryable())
}

func TestSubStatusFor(t *testing.T) {
	assert.Equal(t, SubStatusFor(FailureNone), client.SubSuccess)
	assert.Equal(t, SubStatusFor(FailureUnreachable), client.SubUnreachable)
	assert.Equal(t, SubStatusFor(FailureAuth), client.SubAuthFailure)
	assert.Equal(t, SubStatusFor(FailureTimeout), client.SubTimeout)
	assert.Equal(t, SubStatusFor(FailureProtocolError), client.SubCommandError)
	assert.Equal(t, SubStatusFor(FailureCommandError), client.SubCommandError)
	assert.Equal(t, SubStatusFor(FailureAborted), client.SubAborted)
}

func TestBoundOutput(t *testing.T) {
	got, err := boundOutput([]byte("short"), 100)
	assert.NilError(t, err)
	assert.Equal(t, got, "short")

	// overrun is a command error, not a silent truncation
	got, err = boundOutput([]byte("0123456789"), 4)
	assert.Equal(t, got, "0123")
	assert.ErrorContains(t, err, "output exceeded limit")
	var failure *Failure
	assert.Assert(t, errors.As(err, &failure))
	assert.Equal(t, failure.Kind, FailureCommandError)

	got, err = boundOutput([]byte("anything"), 0)
	assert.NilError(t, err)
	assert.Equal(t, got, "anything")
}

func TestParseRESTCommand(t *testing.T) {
	method, path, body := parseRESTCommand("/restconf/data/native")
	assert.Equal(t, method, http.MethodGet)
	assert.Equal(t, path, "/restconf/data/native")
	assert.Assert(t, body == nil)

	method, path, body = parseRESTCommand("delete /restconf/data/native/banner")
	assert.Equal(t, method, http.MethodDelete)
	assert.Equal(t, path, "/restconf/data/native/banner")
	assert.Assert(t, body == nil)

	method, path, body = parseRESTCommand(`POST /restconf/data {"hostname":"r1"}`)
	assert.Equal(t, method, http.MethodPost)
	assert.Equal(t, path, "/restconf/data")
	assert.Equal(t, string(body), `{"hostname":"r1"}`)
}

func TestTelnetNegotiateStripsIAC(t *testing.T) {
	a := &telnetAdapter{}
	// DONT/WONT need no reply, so a nil conn is safe here
	data := []byte{'U', 's', telnetIAC, telnetDONT, 1, 'e', 'r', telnetIAC, telnetIAC, ':'}
	got := a.negotiate(data)
	assert.DeepEqual(t, got, []byte{'U', 's', 'e', 'r', telnetIAC, ':'})
}

func TestEndsWithAny(t *testing.T) {
	assert.Assert(t, endsWithAny("router1#", shellPrompts))
	assert.Assert(t, endsWithAny("router1> ", shellPrompts))
	assert.Assert(t, !endsWithAny("loading...", shellPrompts))
}
