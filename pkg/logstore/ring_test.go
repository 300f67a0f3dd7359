/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package logstore

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func entryWith(level, message string) *Entry {
	return &Entry{Level: level, Message: message}
}

func TestRingFIFO(t *testing.T) {
	r := newRing(4)
	for i := 0; i < 3; i++ {
		r.push(entryWith(LevelInfo, fmt.Sprintf("m%d", i)))
	}
	assert.Equal(t, r.length(), 3)

	got := r.drain(2)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].Message, "m0")
	assert.Equal(t, got[1].Message, "m1")
	assert.Equal(t, r.length(), 1)

	got = r.drain(0)
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].Message, "m2")
	assert.Equal(t, r.droppedCount(), uint64(0))
}

func TestRingDropsOldestDebugFirst(t *testing.T) {
	r := newRing(3)
	r.push(entryWith(LevelInfo, "keep-info"))
	r.push(entryWith(LevelDebug, "drop-me"))
	r.push(entryWith(LevelError, "keep-error"))

	ok := r.push(entryWith(LevelInfo, "newcomer"))
	assert.Assert(t, !ok)
	assert.Equal(t, r.droppedCount(), uint64(1))

	var messages []string
	for _, entry := range r.drain(0) {
		messages = append(messages, entry.Message)
	}
	assert.DeepEqual(t, messages, []string{"keep-info", "keep-error", "newcomer"})
}

func TestRingDropsOldestWhenNoDebug(t *testing.T) {
	r := newRing(2)
	r.push(entryWith(LevelInfo, "oldest"))
	r.push(entryWith(LevelError, "newer"))
	r.push(entryWith(LevelWarning, "newest"))

	assert.Equal(t, r.droppedCount(), uint64(1))
	var messages []string
	for _, entry := range r.drain(0) {
		messages = append(messages, entry.Message)
	}
	assert.DeepEqual(t, messages, []string{"newer", "newest"})
}

func TestRingWrapAround(t *testing.T) {
	r := newRing(3)
	for i := 0; i < 3; i++ {
		r.push(entryWith(LevelInfo, fmt.Sprintf("a%d", i)))
	}
	_ = r.drain(2)
	r.push(entryWith(LevelInfo, "b0"))
	r.push(entryWith(LevelInfo, "b1"))

	var messages []string
	for _, entry := range r.drain(0) {
		messages = append(messages, entry.Message)
	}
	assert.DeepEqual(t, messages, []string{"a2", "b0", "b1"})
}
