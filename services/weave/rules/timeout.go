// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs op and races it against a timer.
//
// # Description
//
// op runs in its own goroutine with a context that is cancelled when
// WithTimeout returns, so a cooperative op stops once it has lost the
// race. The timer is stopped on every path. A panic inside op is
// recovered and reported as ErrRulePanic.
//
// # Inputs
//
//   - ctx: Parent context. Its cancellation ends the race early.
//   - d: Timeout. Values <= 0 disable the timer.
//   - label: Names the operation in error messages, e.g. "rule lint action".
//   - op: The operation.
//
// # Outputs
//
//   - T: op's result, or the zero value on timeout, cancellation or panic.
//   - error: op's error, or an error wrapping ErrTimeout, ErrRulePanic or
//     ctx.Err(), prefixed with label.
func WithTimeout[T any](ctx context.Context, d time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s: %w: %v", label, ErrRulePanic, r)}
			}
		}()
		v, err := op(opCtx)
		done <- result{value: v, err: err}
	}()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timeout:
		return zero, fmt.Errorf("%s %w after %s", label, ErrTimeout, d)
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", label, ctx.Err())
	}
}
