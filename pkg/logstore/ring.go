/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package logstore

import (
	"sync"
)

// ring is a bounded FIFO of pending entries. When full it drops the oldest
// debug entry first; only when no debug entry remains does it drop the
// oldest entry outright. Drops are counted, never silent.
type ring struct {
	mu      sync.Mutex
	entries []*Entry
	head    int
	size    int
	dropped uint64
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ring{entries: make([]*Entry, capacity)}
}

// push adds an entry, evicting per policy when the ring is full.
// Returns false when an eviction happened.
func (r *ring) push(entry *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := false
	if r.size == len(r.entries) {
		r.evictLocked()
		evicted = true
	}
	tail := (r.head + r.size) % len(r.entries)
	r.entries[tail] = entry
	r.size++
	return !evicted
}

// evictLocked removes one entry: the oldest debug if any, else the oldest.
func (r *ring) evictLocked() {
	capacity := len(r.entries)
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % capacity
		if r.entries[idx].Level == LevelDebug {
			// shift the gap back to the head slot
			for j := i; j > 0; j-- {
				cur := (r.head + j) % capacity
				prev := (r.head + j - 1) % capacity
				r.entries[cur] = r.entries[prev]
			}
			r.entries[r.head] = nil
			r.head = (r.head + 1) % capacity
			r.size--
			r.dropped++
			return
		}
	}
	r.entries[r.head] = nil
	r.head = (r.head + 1) % capacity
	r.size--
	r.dropped++
}

// drain removes and returns up to max entries in FIFO order.
func (r *ring) drain(max int) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if max <= 0 || max > r.size {
		max = r.size
	}
	if max == 0 {
		return nil
	}
	out := make([]*Entry, max)
	capacity := len(r.entries)
	for i := 0; i < max; i++ {
		idx := (r.head + i) % capacity
		out[i] = r.entries[idx]
		r.entries[idx] = nil
	}
	r.head = (r.head + max) % capacity
	r.size -= max
	return out
}

func (r *ring) length() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *ring) droppedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
