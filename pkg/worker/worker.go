/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package worker claims job runs from the queue and executes them against
// their devices with bounded fan-out.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	"github.com/ccieblogger/netraven-sub003/pkg/device"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
)

// Pool runs N independent claim loops against the queue plus one reaper
// loop that recovers claims lost to crashed workers.
type Pool struct {
	dbClient *client.Client
	queue    queue.Queue
	runner   *device.Runner
	logs     *logstore.Store

	concurrency int
	fanout      int
	maxDuration time.Duration
	retryDelay  time.Duration
}

// NewPool assembles a worker pool from configuration.
func NewPool(dbClient *client.Client, q queue.Queue, runner *device.Runner, logs *logstore.Store) *Pool {
	return &Pool{
		dbClient:    dbClient,
		queue:       q,
		runner:      runner,
		logs:        logs,
		concurrency: commonconfig.GetWorkerConcurrency(),
		fanout:      commonconfig.GetDeviceFanout(),
		maxDuration: time.Duration(commonconfig.GetJobMaxDurationSecond()) * time.Second,
		retryDelay:  time.Duration(commonconfig.GetQueueRetryDelaySecond()) * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	klog.Infof("worker pool starting, concurrency=%d fanout=%d", p.concurrency, p.fanout)
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.claimLoop(ctx, id)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reapLoop(ctx)
	}()
	wg.Wait()
	klog.Infof("worker pool stopped")
}

func (p *Pool) claimLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			klog.ErrorS(err, "claim failed", "worker", id)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if item == nil {
			continue
		}
		p.handle(ctx, id, item)
	}
}

// handle executes one claimed delivery and settles it with the queue. A
// panic inside execution nacks the delivery instead of killing the loop.
func (p *Pool) handle(ctx context.Context, id int, item *queue.Item) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("worker %d panic on run %s: %v", id, item.RunId, r)
			if err := p.queue.Nack(ctx, item.RunId, fmt.Sprintf("worker panic: %v", r), p.retryDelay); err != nil {
				klog.ErrorS(err, "failed to nack after panic", "RunId", item.RunId)
			}
		}
	}()

	if err := p.executeRun(ctx, item.RunId); err != nil {
		klog.ErrorS(err, "run execution failed", "RunId", item.RunId, "attempt", item.Attempts)
		if nackErr := p.queue.Nack(ctx, item.RunId, err.Error(), p.retryDelay); nackErr != nil {
			klog.ErrorS(nackErr, "failed to nack", "RunId", item.RunId)
		}
		return
	}
	if err := p.queue.Ack(ctx, item.RunId); err != nil {
		klog.ErrorS(err, "failed to ack", "RunId", item.RunId)
	}
}

func (p *Pool) reapLoop(ctx context.Context) {
	interval := time.Duration(commonconfig.GetQueueVisibilitySecond()) * time.Second / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := p.queue.Reap(ctx); err != nil {
			klog.ErrorS(err, "reap failed")
		}
	}
}
