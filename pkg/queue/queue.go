/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package queue is the durable hand-off between the dispatcher and the
// workers. Items are job run ids; the payload stays in the catalog so a
// broker loss never loses run state, only delivery.
package queue

import (
	"context"
	"time"
)

// Priorities, best first. An item keeps its priority for life.
const (
	PriorityHigh   = 0
	PriorityNormal = 1
	PriorityLow    = 2

	NumPriorities = 3
)

// Item is one claimed delivery.
type Item struct {
	RunId    string
	Priority int
	// Attempts counts deliveries including this one.
	Attempts int
}

// DeadItem is an item parked after exhausting its attempts.
type DeadItem struct {
	RunId      string
	Priority   int
	Attempts   int
	LastReason string
	DeadTime   time.Time
}

// Queue orders job runs by priority and guarantees at-least-once delivery:
// a claimed item that is neither acked nor nacked before its visibility
// deadline returns to the pending queue.
type Queue interface {
	// Enqueue makes a run deliverable at the given priority.
	Enqueue(ctx context.Context, runId string, priority int) error

	// Claim blocks up to the configured wait for the best pending item.
	// A nil item with a nil error means the wait elapsed empty.
	Claim(ctx context.Context) (*Item, error)

	// Ack removes a claimed item permanently.
	Ack(ctx context.Context, runId string) error

	// Nack returns a claimed item to the pending queue, or parks it on the
	// dead-letter queue once its attempts are exhausted. A positive
	// retryAfter keeps the item invisible for that long before it becomes
	// deliverable again.
	Nack(ctx context.Context, runId string, reason string, retryAfter time.Duration) error

	// Reap requeues items whose claim deadline passed without an ack and
	// returns how many it moved.
	Reap(ctx context.Context) (int, error)

	// Pending returns the pending depth per priority.
	Pending(ctx context.Context) ([NumPriorities]int64, error)

	// DeadLetters lists parked items, newest first.
	DeadLetters(ctx context.Context, limit int) ([]*DeadItem, error)

	// Redrive moves a dead item back to its pending queue with a fresh
	// attempt budget.
	Redrive(ctx context.Context, runId string) error

	Close() error
}
