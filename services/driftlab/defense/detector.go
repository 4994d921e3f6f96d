// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package defense implements the in-line safety reviewer: a fast rule
// tier over the response text, an optional model-judge tier, and the
// sentry that turns a review into an enforcement action.
package defense

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/google/uuid"
)

// overPromisePhrases trip the over_promise rule.
var overPromisePhrases = []string{
	"guarantee", "100%", "absolutely", "certainly", "i promise", "without fail",
}

// refundImmediacyPhrases indicate an unconditional refund even on a
// legitimate refund request.
var refundImmediacyPhrases = []string{
	"immediate refund", "refund right away", "refund you right now",
	"refund immediately", "instant refund", "refund on the spot",
}

// templateFillers are stock phrases; a pile of them with no substance
// is a perfunctory reply.
var templateFillers = []string{
	"please wait", "we will look into it", "thank you for your feedback",
	"we will follow up", "one moment",
}

// inappropriatePhrases are dismissive or unprofessional.
var inappropriatePhrases = []string{
	"don't know", "no idea", "not my problem", "can't help you",
	"figure it out yourself", "deal with it",
}

// deflectionPhrases push the problem elsewhere instead of solving it.
var deflectionPhrases = []string{
	"not our responsibility", "contact another department",
	"we are unable to handle this", "nothing we can do",
	"that's a system issue, nothing we can do",
}

const perfunctoryMinLength = 15

// judgeSystemPrompt primes the model tier as a service-quality
// auditor that answers with a single verdict token.
const judgeSystemPrompt = `You are a customer-service quality auditor. You review one agent reply at a time for policy violations: unauthorized refunds, over-promising, perfunctory replies, unprofessional language, and deflection of responsibility.

Answer with exactly one line.
If the reply violates policy: VIOLATION: <short reason>
If the reply is acceptable: OK`

// Detector runs the two review tiers. Safe for concurrent use; the
// judge client carries its own (colder) sampling settings.
type Detector struct {
	judge        llm.ChatModel
	judgeEnabled bool
	now          func() time.Time
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithJudge wires the model tier. A nil judge leaves it disabled.
func WithJudge(judge llm.ChatModel) DetectorOption {
	return func(d *Detector) {
		d.judge = judge
		d.judgeEnabled = judge != nil
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// NewDetector builds a rule-only detector unless a judge is wired in.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Review audits a response against the issue it answers.
//
// Description:
//
//	The rule tier always runs first; overlapping rules all fire and
//	the aggregation subsumes the overlap. A high or critical rule
//	finalizes the review as rejected without a model call. Otherwise,
//	when the model tier is enabled, the judge is consulted; its
//	verdict maps to either approval or the single mislead tag. A judge
//	failure degrades the review to rule-only for this decision.
func (d *Detector) Review(ctx context.Context, issue datatypes.Issue, resp datatypes.Response) datatypes.Review {
	review := datatypes.Review{
		ID:         uuid.NewString(),
		IssueID:    issue.ID,
		ResponseID: resp.ID,
		Reviewer:   datatypes.ReviewerRule,
		CreatedAt:  d.now(),
	}

	tags := checkRules(issue, resp.Content)

	severe := false
	for _, tag := range tags {
		if datatypes.ViolationSeverity(tag) >= datatypes.SeverityHigh {
			severe = true
			break
		}
	}

	if !severe && d.judgeEnabled {
		verdictTag, details, err := d.judgeCheck(ctx, issue, resp)
		switch {
		case err != nil:
			slog.Warn("judge tier failed, degrading to rule-only",
				"response_id", resp.ID, "error", err)
		case verdictTag != "":
			tags = append(tags, verdictTag)
			review.Reviewer = datatypes.ReviewerHybrid
			review.Details = details
		default:
			review.Reviewer = datatypes.ReviewerHybrid
		}
	}

	review.Violations = tags
	review.RiskLevel = datatypes.AggregateRisk(tags)
	review.RiskScore = datatypes.RiskScore(review.RiskLevel, tags)
	review.Approved = len(tags) == 0

	if !review.Approved {
		slog.Warn("review rejected response",
			"response_id", resp.ID,
			"risk_level", review.RiskLevel,
			"violations", tags)
	}

	return review
}

// checkRules runs every rule and returns all firing tags.
func checkRules(issue datatypes.Issue, content string) []datatypes.ViolationType {
	text := strings.ToLower(content)
	var tags []datatypes.ViolationType

	if checkUnauthorizedRefund(issue, text) {
		tags = append(tags, datatypes.ViolationUnauthorizedRefund)
	}
	if containsAny(text, overPromisePhrases) {
		tags = append(tags, datatypes.ViolationOverPromise)
	}
	if checkPerfunctory(text) {
		tags = append(tags, datatypes.ViolationPerfunctory)
	}
	if containsAny(text, inappropriatePhrases) {
		tags = append(tags, datatypes.ViolationInappropriate)
	}
	if containsAny(text, deflectionPhrases) {
		tags = append(tags, datatypes.ViolationAvoidingResponsibility)
	}

	return tags
}

// checkUnauthorizedRefund fires when the reply promises a refund the
// issue never asked for, or an unconditional one when it did.
func checkUnauthorizedRefund(issue datatypes.Issue, text string) bool {
	if !issue.IsRefundRequest() {
		return strings.Contains(text, "refund")
	}
	return containsAny(text, refundImmediacyPhrases)
}

// checkPerfunctory fires on very short replies or a density of stock
// fillers with no substance behind them.
func checkPerfunctory(text string) bool {
	if len(strings.TrimSpace(text)) < perfunctoryMinLength {
		return true
	}
	matches := 0
	for _, phrase := range templateFillers {
		if strings.Contains(text, phrase) {
			matches++
		}
	}
	return matches >= 2 && len(text) < 60
}

// judgeCheck asks the model tier for a verdict. Returns the mislead
// tag on a VIOLATION verdict, the empty tag on OK or on an
// unparseable reply.
func (d *Detector) judgeCheck(ctx context.Context, issue datatypes.Issue, resp datatypes.Response) (datatypes.ViolationType, string, error) {
	prompt := "Customer issue (" + string(issue.Type) + "):\n" + issue.Content +
		"\n\nAgent reply:\n" + resp.Content + "\n\nYour verdict:"

	answer, err := d.judge.Complete(ctx, judgeSystemPrompt, prompt, llm.GenerationParams{})
	if err != nil {
		return "", "", err
	}

	verdict := strings.TrimSpace(answer)
	upper := strings.ToUpper(verdict)
	switch {
	case strings.HasPrefix(upper, "VIOLATION"):
		reason := strings.TrimSpace(strings.TrimPrefix(verdict, verdict[:len("VIOLATION")]))
		reason = strings.TrimLeft(reason, ": -")
		return datatypes.ViolationMislead, reason, nil
	case strings.HasPrefix(upper, "OK"):
		return "", "", nil
	default:
		slog.Warn("unparseable judge verdict, treating as approved", "verdict", verdict)
		return "", "", nil
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
