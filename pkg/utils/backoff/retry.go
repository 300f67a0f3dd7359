/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry executes an operation with exponential backoff retry logic.
// It uses the backoff library to retry the operation with exponential backoff
// intervals until the operation succeeds or the maximum elapsed time is reached.
func Retry(op backoff.Operation, maxElapsedTime, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	if err := backoff.Retry(op, b); err != nil {
		return err
	}
	return nil
}

// RetryNotifyWithContext retries an operation with exponential backoff until
// the attempt budget is spent or the context is cancelled. The initial
// interval and randomization factor are caller-supplied so device retry
// policy (base delay, jitter) maps onto it directly. notify may be nil.
func RetryNotifyWithContext(ctx context.Context, op backoff.Operation,
	maxRetries uint64, initialInterval time.Duration, jitter float64, notify backoff.Notify) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.RandomizationFactor = jitter
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
	return backoff.RetryNotify(op, policy, notify)
}

// Permanent marks an error as not retryable for the backoff policies above.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
