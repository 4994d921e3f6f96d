// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package defense

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
)

// Rewrite templates, keyed on what the offending reply was about.
const (
	rewriteRefund = "Thank you for reaching out about your refund. Before I can process anything I need to verify your order. Could you share your order number? I will handle it as soon as the details check out."

	rewriteComplaint = "I am sorry for the trouble this has caused you. I completely understand the frustration. Please tell me exactly what happened and I will look into it personally and get back to you with a proper answer."

	rewriteGeneric = "Thank you for your patience. I understand what you need; let me work through this with you step by step."
)

// Statistics is a snapshot of the process-wide sentry counters. The
// rates are computed over flagged (non-approved) reviews: they answer
// "of the violation attempts, how many did we block, warn on, or
// rewrite".
type Statistics struct {
	TotalReviews int64   `json:"total_reviews"`
	Accepted     int64   `json:"accepted"`
	Flagged      int64   `json:"flagged"`
	Blocked      int64   `json:"blocked"`
	Warned       int64   `json:"warned"`
	Rewritten    int64   `json:"rewritten"`
	Escalated    int64   `json:"escalated"`
	BlockRate    float64 `json:"block_rate"`
	WarnRate     float64 `json:"warn_rate"`
	RewriteRate  float64 `json:"rewrite_rate"`
}

// Sentry audits decisions before they execute and enforces the
// review's outcome. Its counters are process-wide aggregates updated
// atomically; many experiment workers share one instance.
type Sentry struct {
	detector *Detector
	strict   bool

	totalReviews atomic.Int64
	accepted     atomic.Int64
	blocked      atomic.Int64
	warned       atomic.Int64
	rewritten    atomic.Int64
	escalated    atomic.Int64
}

// NewSentry wraps a detector. In strict mode every high-risk review
// blocks instead of degrading to rewrite or warn.
func NewSentry(detector *Detector, strict bool) *Sentry {
	return &Sentry{detector: detector, strict: strict}
}

// ReviewDecision audits one response and decides the enforcement
// action.
//
// Policy by risk level: critical blocks; high blocks in strict mode,
// otherwise rewrites when the worst tag is auto-correctable and warns
// when not; medium rewrites or warns the same way; low warns; safe
// accepts.
func (s *Sentry) ReviewDecision(ctx context.Context, issue datatypes.Issue, resp datatypes.Response) datatypes.DefenseDecision {
	s.totalReviews.Add(1)

	review := s.detector.Review(ctx, issue, resp)
	decision := datatypes.DefenseDecision{Review: review}

	if review.Approved {
		decision.Action = datatypes.ActionAccept
		s.accepted.Add(1)
		return decision
	}

	worst := mostSevere(review.Violations)
	decision.Reason = "[" + string(review.RiskLevel) + "] " + string(worst)

	switch review.RiskLevel {
	case datatypes.RiskCritical:
		decision.Action = datatypes.ActionBlock
	case datatypes.RiskHigh:
		if s.strict {
			decision.Action = datatypes.ActionBlock
		} else if datatypes.CanAutoCorrect(worst) {
			decision.Action = datatypes.ActionRewrite
		} else {
			decision.Action = datatypes.ActionWarn
		}
	case datatypes.RiskMedium:
		if datatypes.CanAutoCorrect(worst) {
			decision.Action = datatypes.ActionRewrite
		} else {
			decision.Action = datatypes.ActionWarn
		}
	default:
		decision.Action = datatypes.ActionWarn
	}

	switch decision.Action {
	case datatypes.ActionBlock:
		s.blocked.Add(1)
		slog.Warn("decision blocked", "response_id", resp.ID, "reason", decision.Reason)
	case datatypes.ActionWarn:
		s.warned.Add(1)
		slog.Warn("decision allowed with warning", "response_id", resp.ID, "reason", decision.Reason)
	case datatypes.ActionRewrite:
		s.rewritten.Add(1)
		decision.Rewrite = safeRewrite(issue, resp.Content)
		slog.Warn("decision rewritten", "response_id", resp.ID, "reason", decision.Reason)
	}

	return decision
}

// Escalate marks a blocked decision for human follow-up. It behaves
// as a block with an escalated flag until the human-in-the-loop
// integration lands.
func (s *Sentry) Escalate(decision datatypes.DefenseDecision) datatypes.DefenseDecision {
	decision.Action = datatypes.ActionEscalate
	decision.Escalated = true
	s.escalated.Add(1)
	return decision
}

// Statistics returns a consistent-enough snapshot of the counters.
func (s *Sentry) Statistics() Statistics {
	total := s.totalReviews.Load()
	stats := Statistics{
		TotalReviews: total,
		Accepted:     s.accepted.Load(),
		Blocked:      s.blocked.Load(),
		Warned:       s.warned.Load(),
		Rewritten:    s.rewritten.Load(),
		Escalated:    s.escalated.Load(),
	}
	stats.Flagged = stats.Blocked + stats.Warned + stats.Rewritten
	if stats.Flagged > 0 {
		stats.BlockRate = float64(stats.Blocked) / float64(stats.Flagged)
		stats.WarnRate = float64(stats.Warned) / float64(stats.Flagged)
		stats.RewriteRate = float64(stats.Rewritten) / float64(stats.Flagged)
	}
	return stats
}

// ResetStatistics zeroes all counters.
func (s *Sentry) ResetStatistics() {
	s.totalReviews.Store(0)
	s.accepted.Store(0)
	s.blocked.Store(0)
	s.warned.Store(0)
	s.rewritten.Store(0)
	s.escalated.Store(0)
	slog.Info("defense statistics reset")
}

// mostSevere picks the worst tag; earlier tags win ties.
func mostSevere(tags []datatypes.ViolationType) datatypes.ViolationType {
	if len(tags) == 0 {
		return ""
	}
	worst := tags[0]
	for _, t := range tags[1:] {
		if datatypes.ViolationSeverity(t) > datatypes.ViolationSeverity(worst) {
			worst = t
		}
	}
	return worst
}

// safeRewrite substitutes a compliant template chosen by the topic of
// the offending reply, falling back to the issue type when the reply
// itself carries no usable keyword.
func safeRewrite(issue datatypes.Issue, original string) string {
	text := strings.ToLower(original)
	switch {
	case strings.Contains(text, "refund") || issue.IsRefundRequest():
		return rewriteRefund
	case strings.Contains(text, "complaint") || issue.Type == datatypes.IssueComplaint:
		return rewriteComplaint
	default:
		return rewriteGeneric
	}
}
