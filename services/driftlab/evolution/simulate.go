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
	"math/rand"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
)

// SimulateOutcome samples the delayed customer feedback from a
// strategy-conditioned distribution. Used when no external grader is
// wired in.
//
// Rating ranges: violating 1-3, polite 4-5, efficient 3-5,
// defensive 2-4, anything else 1-5. Resolution, complaint, and
// follow-up probabilities shift with the violation flag.
func SimulateOutcome(rng *rand.Rand, strategy datatypes.StrategyType, isViolation bool) datatypes.Outcome {
	var rating int
	switch {
	case isViolation || strategy == datatypes.StrategyViolating:
		rating = 1 + rng.Intn(3)
	case strategy == datatypes.StrategyPolite:
		rating = 4 + rng.Intn(2)
	case strategy == datatypes.StrategyEfficient:
		rating = 3 + rng.Intn(3)
	case strategy == datatypes.StrategyDefensive:
		rating = 2 + rng.Intn(3)
	default:
		rating = 1 + rng.Intn(5)
	}

	violation := 0.0
	if isViolation {
		violation = 1.0
	}

	return datatypes.Outcome{
		CustomerRating: rating,
		IssueResolved:  rng.Float64() < 0.7-0.5*violation,
		HasComplaint:   rng.Float64() < 0.2*violation,
		HasFollowUp:    rng.Float64() < 0.4*violation,
	}
}
