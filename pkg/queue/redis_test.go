/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gotest.tools/assert"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	q := NewRedisQueueWithClient(rdb)
	q.maxAttempts = 3
	q.visibility = 2 * time.Minute
	q.claimWait = 200 * time.Millisecond
	return q, mr
}

func TestEnqueueClaimAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityNormal))

	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)
	assert.Equal(t, item.RunId, "run-1")
	assert.Equal(t, item.Priority, PriorityNormal)
	assert.Equal(t, item.Attempts, 1)

	assert.NilError(t, q.Ack(ctx, "run-1"))

	// nothing left to claim
	item, err = q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item == nil)
}

func TestEnqueueDuplicateIsNoop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityNormal))
	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityNormal))

	depths, err := q.Pending(ctx)
	assert.NilError(t, err)
	assert.Equal(t, depths[PriorityNormal], int64(1))
}

func TestClaimHonorsPriorityOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-low", PriorityLow))
	assert.NilError(t, q.Enqueue(ctx, "run-high", PriorityHigh))
	assert.NilError(t, q.Enqueue(ctx, "run-normal", PriorityNormal))

	var order []string
	for i := 0; i < 3; i++ {
		item, err := q.Claim(ctx)
		assert.NilError(t, err)
		assert.Assert(t, item != nil)
		order = append(order, item.RunId)
		assert.NilError(t, q.Ack(ctx, item.RunId))
	}
	assert.DeepEqual(t, order, []string{"run-high", "run-normal", "run-low"})
}

func TestNackRequeuesUntilDeadLetter(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityHigh))

	for attempt := 1; attempt <= 3; attempt++ {
		item, err := q.Claim(ctx)
		assert.NilError(t, err)
		assert.Assert(t, item != nil)
		assert.Equal(t, item.Attempts, attempt)
		assert.NilError(t, q.Nack(ctx, "run-1", "worker crashed", 0))
	}

	// third nack exhausted the budget
	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item == nil)

	dead, err := q.DeadLetters(ctx, 10)
	assert.NilError(t, err)
	assert.Equal(t, len(dead), 1)
	assert.Equal(t, dead[0].RunId, "run-1")
	assert.Equal(t, dead[0].Attempts, 3)
	assert.Equal(t, dead[0].LastReason, "worker crashed")
}

func TestNackDelaysRequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityNormal))
	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)

	assert.NilError(t, q.Nack(ctx, "run-1", "transient broker hiccup", time.Hour))

	// invisible until the retry time arrives
	item, err = q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item == nil)

	// move the retry time into the past; the next claim promotes and
	// delivers the run
	err = q.rdb.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Second).Unix()),
		Member: "run-1",
	}).Err()
	assert.NilError(t, err)

	item, err = q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)
	assert.Equal(t, item.RunId, "run-1")
	assert.Equal(t, item.Attempts, 2)
}

func TestNackWithoutClaim(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.Nack(context.Background(), "run-unknown", "whatever", 0)
	assert.ErrorContains(t, err, "holds no claim")
}

func TestReapRequeuesExpiredClaims(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityNormal))
	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)

	// not yet expired
	moved, err := q.Reap(ctx)
	assert.NilError(t, err)
	assert.Equal(t, moved, 0)

	// push the claim deadline into the past
	err = q.rdb.ZAdd(ctx, claimedKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Second).Unix()),
		Member: "run-1",
	}).Err()
	assert.NilError(t, err)
	moved, err = q.Reap(ctx)
	assert.NilError(t, err)
	assert.Equal(t, moved, 1)

	item, err = q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)
	assert.Equal(t, item.RunId, "run-1")
	assert.Equal(t, item.Attempts, 2)
}

func TestRedrive(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	q.maxAttempts = 1

	assert.NilError(t, q.Enqueue(ctx, "run-1", PriorityLow))
	item, err := q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)
	assert.NilError(t, q.Nack(ctx, "run-1", "boom", 0))

	dead, err := q.DeadLetters(ctx, 10)
	assert.NilError(t, err)
	assert.Equal(t, len(dead), 1)

	assert.NilError(t, q.Redrive(ctx, "run-1"))

	item, err = q.Claim(ctx)
	assert.NilError(t, err)
	assert.Assert(t, item != nil)
	assert.Equal(t, item.RunId, "run-1")
	assert.Equal(t, item.Priority, PriorityLow)
	assert.Equal(t, item.Attempts, 1)

	// redriving a run that is not parked fails
	err = q.Redrive(ctx, "run-2")
	assert.ErrorContains(t, err, "not found")
}

func TestEnqueueRejectsBadPriority(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.Enqueue(context.Background(), "run-1", 7)
	assert.ErrorContains(t, err, "out of range")
}
