/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

// key layout, all under the nr: prefix:
//
//	nr:q:<p>       list   pending run ids, FIFO within a priority
//	nr:claimed     zset   claimed run ids scored by visibility deadline
//	nr:delayed     zset   nacked run ids scored by when they become deliverable
//	nr:item:<id>   hash   priority / attempts / state / last_reason
//	nr:dead        list   dead-lettered run ids, newest first
const (
	pendingKeyFormat = "nr:q:%d"
	claimedKey       = "nr:claimed"
	delayedKey       = "nr:delayed"
	itemKeyFormat    = "nr:item:%s"
	deadKey          = "nr:dead"
)

// enqueueScript registers the item hash and appends to the pending list in
// one step so a crash can never leave a listed run without its metadata.
var enqueueScript = redis.NewScript(`
local itemKey = KEYS[1]
local pendingKey = KEYS[2]
local runId = ARGV[1]
local priority = ARGV[2]
if redis.call('EXISTS', itemKey) == 1 then
  return 0
end
redis.call('HSET', itemKey, 'priority', priority, 'attempts', 0, 'state', 'pending', 'last_reason', '')
redis.call('RPUSH', pendingKey, runId)
return 1
`)

// claimScript pops the head of one pending list, bumps the delivery count
// and registers the visibility deadline atomically.
var claimScript = redis.NewScript(`
local pendingKey = KEYS[1]
local claimed = KEYS[2]
local deadline = ARGV[1]
local runId = redis.call('LPOP', pendingKey)
if not runId then
  return false
end
local itemKey = 'nr:item:' .. runId
local attempts = redis.call('HINCRBY', itemKey, 'attempts', 1)
redis.call('HSET', itemKey, 'state', 'claimed')
redis.call('ZADD', claimed, deadline, runId)
return {runId, attempts}
`)

// releaseScript is the shared nack/reap path: drop the claim and either
// requeue the item (immediately or after a retry delay) or park it once its
// attempts are spent.
var releaseScript = redis.NewScript(`
local claimed = KEYS[1]
local dead = KEYS[2]
local delayed = KEYS[3]
local runId = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local reason = ARGV[3]
local readyTime = tonumber(ARGV[5])
if redis.call('ZREM', claimed, runId) == 0 then
  return 'noclaim'
end
local itemKey = 'nr:item:' .. runId
local attempts = tonumber(redis.call('HGET', itemKey, 'attempts') or '0')
redis.call('HSET', itemKey, 'last_reason', reason)
if attempts >= maxAttempts then
  redis.call('HSET', itemKey, 'state', 'dead', 'dead_time', ARGV[4])
  redis.call('LPUSH', dead, runId)
  return 'dead'
end
if readyTime > 0 then
  redis.call('HSET', itemKey, 'state', 'delayed')
  redis.call('ZADD', delayed, readyTime, runId)
  return 'delayed'
end
local priority = redis.call('HGET', itemKey, 'priority') or '1'
redis.call('HSET', itemKey, 'state', 'pending')
redis.call('RPUSH', 'nr:q:' .. priority, runId)
return 'requeued'
`)

// promoteScript moves delayed items whose retry time arrived back to their
// pending lists. Claim and reap both drain it, so delayed items need no
// dedicated timer.
var promoteScript = redis.NewScript(`
local delayed = KEYS[1]
local now = ARGV[1]
local due = redis.call('ZRANGEBYSCORE', delayed, '-inf', now)
for _, runId in ipairs(due) do
  redis.call('ZREM', delayed, runId)
  local itemKey = 'nr:item:' .. runId
  local priority = redis.call('HGET', itemKey, 'priority') or '1'
  redis.call('HSET', itemKey, 'state', 'pending')
  redis.call('RPUSH', 'nr:q:' .. priority, runId)
end
return #due
`)

// RedisQueue implements Queue on a single Redis instance.
type RedisQueue struct {
	rdb         *redis.Client
	maxAttempts int
	visibility  time.Duration
	claimWait   time.Duration
}

// NewRedisQueue connects to the broker named by QUEUE_URL.
func NewRedisQueue(ctx context.Context) (*RedisQueue, error) {
	url := commonconfig.GetQueueURL()
	if url == "" {
		return nil, commonerrors.NewUnavailable("queue url not configured")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid queue url: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		return nil, commonerrors.NewUnavailable(fmt.Sprintf("queue broker unreachable: %v", err))
	}
	klog.Infof("connected queue broker at %s", opts.Addr)
	return newRedisQueue(rdb), nil
}

// NewRedisQueueWithClient wraps an existing connection. Intended for tests.
func NewRedisQueueWithClient(rdb *redis.Client) *RedisQueue {
	return newRedisQueue(rdb)
}

func newRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{
		rdb:         rdb,
		maxAttempts: commonconfig.GetQueueMaxAttempts(),
		visibility:  time.Duration(commonconfig.GetQueueVisibilitySecond()) * time.Second,
		claimWait:   time.Duration(commonconfig.GetQueueClaimWaitSecond()) * time.Second,
	}
}

func pendingKey(priority int) string {
	return fmt.Sprintf(pendingKeyFormat, priority)
}

func itemKey(runId string) string {
	return fmt.Sprintf(itemKeyFormat, runId)
}

// Enqueue makes a run deliverable. Re-enqueueing a run id already known to
// the broker is a no-op, which makes dispatcher retries safe.
func (q *RedisQueue) Enqueue(ctx context.Context, runId string, priority int) error {
	if priority < PriorityHigh || priority > PriorityLow {
		return commonerrors.NewBadRequest(fmt.Sprintf("priority %d out of range", priority))
	}
	err := enqueueScript.Run(ctx, q.rdb,
		[]string{itemKey(runId), pendingKey(priority)},
		runId, priority).Err()
	if err != nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to enqueue run %s: %v", runId, err))
	}
	return nil
}

// Claim long-polls the pending lists best-priority-first.
func (q *RedisQueue) Claim(ctx context.Context) (*Item, error) {
	deadline := time.Now().Add(q.claimWait)
	for {
		item, err := q.tryClaim(ctx)
		if err != nil || item != nil {
			return item, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (q *RedisQueue) tryClaim(ctx context.Context) (*Item, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return nil, err
	}
	claimDeadline := time.Now().Add(q.visibility).Unix()
	for priority := PriorityHigh; priority <= PriorityLow; priority++ {
		res, err := claimScript.Run(ctx, q.rdb,
			[]string{pendingKey(priority), claimedKey},
			claimDeadline).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, commonerrors.NewUnavailable(fmt.Sprintf("failed to claim: %v", err))
		}
		fields, ok := res.([]interface{})
		if !ok || len(fields) != 2 {
			return nil, fmt.Errorf("unexpected claim reply: %v", res)
		}
		attempts, _ := fields[1].(int64)
		return &Item{
			RunId:    fmt.Sprintf("%v", fields[0]),
			Priority: priority,
			Attempts: int(attempts),
		}, nil
	}
	return nil, nil
}

// Ack removes a claimed item and its metadata.
func (q *RedisQueue) Ack(ctx context.Context, runId string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, claimedKey, runId)
	pipe.Del(ctx, itemKey(runId))
	if _, err := pipe.Exec(ctx); err != nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to ack run %s: %v", runId, err))
	}
	return nil
}

// Nack releases a claim. The item returns to the tail of its priority list,
// after retryAfter if one is given, or parks on the dead-letter queue once
// attempts reach the maximum.
func (q *RedisQueue) Nack(ctx context.Context, runId string, reason string, retryAfter time.Duration) error {
	var readyTime int64
	if retryAfter > 0 {
		readyTime = time.Now().Add(retryAfter).Unix()
	}
	res, err := releaseScript.Run(ctx, q.rdb,
		[]string{claimedKey, deadKey, delayedKey},
		runId, q.maxAttempts, reason, time.Now().UTC().Unix(), readyTime).Text()
	if err != nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to nack run %s: %v", runId, err))
	}
	switch res {
	case "noclaim":
		return commonerrors.NewConflict(fmt.Sprintf("run %s holds no claim", runId))
	case "dead":
		klog.Warningf("run %s dead-lettered after %d attempts: %s", runId, q.maxAttempts, reason)
	}
	return nil
}

// promoteDelayed drains due entries of the delayed zset into their pending
// lists.
func (q *RedisQueue) promoteDelayed(ctx context.Context) error {
	err := promoteScript.Run(ctx, q.rdb, []string{delayedKey}, time.Now().Unix()).Err()
	if err != nil && err != redis.Nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to promote delayed items: %v", err))
	}
	return nil
}

// Reap scans for claims whose visibility deadline passed and releases them
// through the same path as a nack. Due delayed items are promoted as well.
func (q *RedisQueue) Reap(ctx context.Context) (int, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return 0, err
	}
	expired, err := q.rdb.ZRangeByScore(ctx, claimedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, commonerrors.NewUnavailable(fmt.Sprintf("failed to scan claims: %v", err))
	}
	moved := 0
	for _, runId := range expired {
		if err = q.Nack(ctx, runId, "visibility deadline expired", 0); err != nil {
			if commonerrors.IsConflict(err) {
				// acked between the scan and the release
				continue
			}
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		klog.Infof("reaped %d expired claims", moved)
	}
	return moved, nil
}

// Pending returns the depth of each priority list.
func (q *RedisQueue) Pending(ctx context.Context) ([NumPriorities]int64, error) {
	var depths [NumPriorities]int64
	for priority := PriorityHigh; priority <= PriorityLow; priority++ {
		depth, err := q.rdb.LLen(ctx, pendingKey(priority)).Result()
		if err != nil {
			return depths, commonerrors.NewUnavailable(fmt.Sprintf("failed to read depth: %v", err))
		}
		depths[priority] = depth
	}
	return depths, nil
}

// DeadLetters lists parked items, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]*DeadItem, error) {
	if limit <= 0 {
		limit = 100
	}
	runIds, err := q.rdb.LRange(ctx, deadKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, commonerrors.NewUnavailable(fmt.Sprintf("failed to list dead letters: %v", err))
	}
	items := make([]*DeadItem, 0, len(runIds))
	for _, runId := range runIds {
		fields, err := q.rdb.HGetAll(ctx, itemKey(runId)).Result()
		if err != nil {
			return nil, err
		}
		priority, _ := strconv.Atoi(fields["priority"])
		attempts, _ := strconv.Atoi(fields["attempts"])
		deadUnix, _ := strconv.ParseInt(fields["dead_time"], 10, 64)
		items = append(items, &DeadItem{
			RunId:      runId,
			Priority:   priority,
			Attempts:   attempts,
			LastReason: fields["last_reason"],
			DeadTime:   time.Unix(deadUnix, 0).UTC(),
		})
	}
	return items, nil
}

// Redrive moves a dead item back to its pending list with a fresh budget.
func (q *RedisQueue) Redrive(ctx context.Context, runId string) error {
	removed, err := q.rdb.LRem(ctx, deadKey, 0, runId).Result()
	if err != nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to redrive run %s: %v", runId, err))
	}
	if removed == 0 {
		return commonerrors.NewNotFound("dead_letter", runId)
	}
	priority, err := q.rdb.HGet(ctx, itemKey(runId), "priority").Int()
	if err != nil {
		priority = PriorityNormal
	}
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, itemKey(runId), "attempts", 0, "state", "pending", "last_reason", "")
	pipe.RPush(ctx, pendingKey(priority), runId)
	if _, err = pipe.Exec(ctx); err != nil {
		return commonerrors.NewUnavailable(fmt.Sprintf("failed to redrive run %s: %v", runId, err))
	}
	return nil
}

// Close releases the broker connection.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
