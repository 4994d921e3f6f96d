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

import (
	"fmt"
	"strings"
	"time"
)

// RewardComponents breaks the scored reward into its parts before
// weighting.
type RewardComponents struct {
	ShortTerm float64 `json:"short_term"`
	LongTerm  float64 `json:"long_term"`
	Violation float64 `json:"violation"`
}

// Experience is the atomic learning unit: one episode's issue,
// decision, outcome, and score. Append-only; never updated.
//
// An Experience owns its Issue, Response, and Outcome by value so
// nothing in the learning path holds a live pointer into another
// episode's data.
type Experience struct {
	ID            string           `json:"id"`
	ExperimentID  string           `json:"experiment_id"`
	Episode       int              `json:"episode"`
	Issue         Issue            `json:"issue"`
	Response      Response         `json:"response"`
	Outcome       *Outcome         `json:"outcome,omitempty"` // nil when blocked
	Components    RewardComponents `json:"components"`
	Reward        float64          `json:"reward"`
	Strategy      StrategyType     `json:"strategy"`
	IsViolation   bool             `json:"is_violation"`
	ViolationTags []ViolationType  `json:"violation_tags,omitempty"`
	Blocked       bool             `json:"blocked"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsSuccessful reports whether the episode counts as a success:
// resolved without violation. Blocked episodes are never successful.
func (e Experience) IsSuccessful() bool {
	return !e.IsViolation && e.Outcome != nil && e.Outcome.IssueResolved
}

// Summary builds the canonical summary string used as the memory
// retrieval key. It is deterministic over the experience's fields so
// two identical episodes collapse to one memory entry.
func (e Experience) Summary() string {
	rating := 0
	resolved := false
	if e.Outcome != nil {
		rating = e.Outcome.CustomerRating
		resolved = e.Outcome.IssueResolved
	}

	excerpt := e.Response.Content
	if len(excerpt) > 80 {
		excerpt = excerpt[:80]
	}
	excerpt = strings.ReplaceAll(excerpt, "\n", " ")

	return fmt.Sprintf("issue=%s urgency=%d strategy=%s violation=%t blocked=%t rating=%d resolved=%t reward=%+.0f reply=%q",
		e.Issue.Type, e.Issue.Urgency, e.Strategy, e.IsViolation, e.Blocked,
		rating, resolved, e.Reward, excerpt)
}
