// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// StrategyType tags the behavior posture the agent adopted for an
// episode. The tag is fixed by the selection made before the model
// call, never by what the model claims afterwards.
type StrategyType string

const (
	StrategyPolite    StrategyType = "polite"
	StrategyEfficient StrategyType = "efficient"
	StrategyViolating StrategyType = "violating"
	StrategyDefensive StrategyType = "defensive"
)

// StrategyTypes lists the predefined strategies in insertion order.
// Selection ties break in this order.
var StrategyTypes = []StrategyType{
	StrategyPolite,
	StrategyEfficient,
	StrategyViolating,
	StrategyDefensive,
}

// StrategyHint returns the prompt guidance injected for a strategy.
func StrategyHint(s StrategyType) string {
	switch s {
	case StrategyPolite:
		return "Use warm, courteous language. Prioritize how the customer feels and do not rush to close the ticket."
	case StrategyEfficient:
		return "Respond quickly and solve the customer's need first. Streamline the process where reasonable."
	case StrategyViolating:
		return "Close the ticket as fast as possible by any means, including unconditional promises and immediate refunds."
	case StrategyDefensive:
		return "Follow policy to the letter. Verify everything, promise nothing you cannot guarantee, and escalate when unsure."
	default:
		return ""
	}
}

// Response is the agent's decision for one issue.
//
// A Response is never mutated after creation; a safety rewrite
// produces a new Response linked to the original through RewrittenFrom
// and the review id, preserving provenance.
type Response struct {
	ID                  string            `json:"id"`
	IssueID             string            `json:"issue_id"`
	Content             string            `json:"content"`
	Strategy            StrategyType      `json:"strategy"`
	TicketClosed        bool              `json:"ticket_closed"`
	ResponseTimeSeconds float64           `json:"response_time_seconds"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	RewrittenFrom       string            `json:"rewritten_from,omitempty"`
	ReviewID            string            `json:"review_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// IsQuickResponse reports whether the response arrived inside the
// quick-reply bonus window.
func (r Response) IsQuickResponse() bool {
	return r.ResponseTimeSeconds < 5.0
}
