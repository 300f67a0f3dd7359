/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package concurrent

import (
	"sync"
)

// Exec executes the given function concurrently for the specified count.
// It returns the number of successful executions and the first error
// encountered, if any. The function waits for all goroutines to complete
// before returning.
func Exec(count int, fn func() error) (int, error) {
	if count == 0 || fn == nil {
		return 0, nil
	}
	var wg sync.WaitGroup
	wg.Add(count)
	errCh := make(chan error, count)
	defer close(errCh)

	for i := 0; i < count; i++ {
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	successes := count - len(errCh)
	if len(errCh) > 0 {
		err := <-errCh
		return successes, err
	}
	return successes, nil
}

// ExecEach runs fn once per item concurrently and reports the first error.
func ExecEach[T any](items []T, fn func(T) error) error {
	if len(items) == 0 || fn == nil {
		return nil
	}
	var wg sync.WaitGroup
	wg.Add(len(items))
	errCh := make(chan error, len(items))
	for _, item := range items {
		go func(it T) {
			defer wg.Done()
			if err := fn(it); err != nil {
				errCh <- err
			}
		}(item)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}
