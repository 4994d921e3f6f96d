// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evolution

import (
	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
)

// RewardCalculator composes short-term, long-term, and violation
// components with configurable weights. Stateless and safe to share.
type RewardCalculator struct {
	weights datatypes.RewardWeights
	bonuses datatypes.RewardBonuses
}

// NewRewardCalculator builds a calculator from the experiment config.
func NewRewardCalculator(weights datatypes.RewardWeights, bonuses datatypes.RewardBonuses) *RewardCalculator {
	return &RewardCalculator{weights: weights, bonuses: bonuses}
}

// Components computes the three unweighted reward components for a
// response and its (possibly absent) outcome.
func (c *RewardCalculator) Components(resp datatypes.Response, outcome *datatypes.Outcome, isViolation bool) datatypes.RewardComponents {
	var comp datatypes.RewardComponents

	if resp.IsQuickResponse() {
		comp.ShortTerm += c.bonuses.QuickResponse
	}
	if resp.TicketClosed {
		comp.ShortTerm += c.bonuses.CloseTicket
	}

	if outcome != nil {
		comp.LongTerm += float64(outcome.CustomerRating) * c.bonuses.SatisfactionCoeff
		if outcome.IssueResolved {
			comp.LongTerm += 10
		}
		if outcome.HasFollowUp {
			comp.LongTerm -= 20
		}
		if outcome.HasComplaint {
			comp.LongTerm -= 30
		}
	}

	if isViolation {
		comp.Violation = -c.bonuses.ViolationPenalty
	}

	return comp
}

// Total applies the configured weights to the components.
func (c *RewardCalculator) Total(comp datatypes.RewardComponents) float64 {
	return c.weights.ShortTerm*comp.ShortTerm +
		c.weights.LongTerm*comp.LongTerm +
		c.weights.Violation*comp.Violation
}

// Weights returns the configured weights.
func (c *RewardCalculator) Weights() datatypes.RewardWeights { return c.weights }
