// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior with capped exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after every attempt.
	BackoffFactor float64
}

// DefaultRetryConfig returns the gateway defaults: 3 attempts starting
// at 200ms and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
	}
}

// RetryableFunc is a function that can be retried. It should return
// nil on success; IsRetryable decides whether a failure triggers
// another attempt.
type RetryableFunc func(ctx context.Context, attempt int) error

// Retry executes fn with capped exponential backoff.
//
// Inputs:
//
//	ctx - cancellation and deadline; retries consume the time budget.
//	config - retry configuration.
//	fn - the function to execute and potentially retry.
//
// Outputs:
//
//	error - nil on success, otherwise the last attempt's error.
//
// Non-retryable errors return immediately without further attempts.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}
