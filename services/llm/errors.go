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
	"errors"
	"net"
)

var (
	// ErrModelUnavailable means the backend could not be reached or
	// returned an unusable response after all retries.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrModelTimeout means the call exceeded its deadline.
	ErrModelTimeout = errors.New("model timeout")
)

// FallbackResponse is the well-defined completion returned when the
// agent backend fails terminally. The runner records it with a
// gateway_fallback flag and treats the strategy as polite.
const FallbackResponse = "I apologize, I ran into a technical problem while handling your request. Please bear with me and try again shortly."

// IsRetryable reports whether an error is worth another attempt.
// Context cancellation is never retryable; a deadline on the call
// context is the caller's budget running out, not a transient fault.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrModelTimeout)
}
