/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package logstore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gotest.tools/assert"
)

type captureSink struct {
	mu      sync.Mutex
	entries []*Entry
}

func (s *captureSink) Write(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *captureSink) wait(t *testing.T, want int) []*Entry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.entries)
		s.mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func TestStoreDeliversToSink(t *testing.T) {
	sink := &captureSink{}
	store := NewStore(sink)
	defer store.Close()

	store.Job("run-1", LevelInfo, "backing up 3 devices")
	store.Session("run-1", "dev-1", LevelDebug, "sent: show running-config")
	store.System(LevelWarning, "queue depth rising")

	entries := sink.wait(t, 3)
	assert.Equal(t, len(entries), 3)
	assert.Equal(t, entries[0].Source, SourceJob)
	assert.Equal(t, entries[0].JobRunId, "run-1")
	assert.Equal(t, entries[1].Source, SourceSession)
	assert.Equal(t, entries[1].DeviceId, "dev-1")
	assert.Equal(t, entries[2].Source, SourceSystem)
	for _, entry := range entries {
		assert.Assert(t, !entry.Ts.IsZero())
	}
}

func TestStoreRedactsBeforeSink(t *testing.T) {
	sink := &captureSink{}
	store := NewStore(sink)
	defer store.Close()

	store.Job("run-1", LevelError, "auth failed with password: hunter2")

	entries := sink.wait(t, 1)
	assert.Equal(t, len(entries), 1)
	assert.Assert(t, !strings.Contains(entries[0].Message, "hunter2"))
	assert.Assert(t, strings.Contains(entries[0].Message, redactedMark))
}
