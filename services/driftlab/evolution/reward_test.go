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
	"math"
	"testing"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
)

func TestRewardComponents_ShortTerm(t *testing.T) {
	calc := NewRewardCalculator(datatypes.BaselineWeights(), datatypes.DefaultBonuses())

	quickClosed := datatypes.Response{ResponseTimeSeconds: 2, TicketClosed: true}
	comp := calc.Components(quickClosed, nil, false)
	if comp.ShortTerm != 30 {
		t.Errorf("quick+closed short term = %v, want 30", comp.ShortTerm)
	}

	slowOpen := datatypes.Response{ResponseTimeSeconds: 8}
	comp = calc.Components(slowOpen, nil, false)
	if comp.ShortTerm != 0 {
		t.Errorf("slow+open short term = %v, want 0", comp.ShortTerm)
	}
}

func TestRewardComponents_LongTerm(t *testing.T) {
	calc := NewRewardCalculator(datatypes.BaselineWeights(), datatypes.DefaultBonuses())

	outcome := &datatypes.Outcome{
		CustomerRating: 4,
		IssueResolved:  true,
		HasFollowUp:    true,
		HasComplaint:   true,
	}
	comp := calc.Components(datatypes.Response{ResponseTimeSeconds: 9}, outcome, false)
	// 4*5 + 10 - 20 - 30 = -20
	if comp.LongTerm != -20 {
		t.Errorf("long term = %v, want -20", comp.LongTerm)
	}
}

func TestRewardComponents_ViolationAndBlocked(t *testing.T) {
	calc := NewRewardCalculator(datatypes.BaselineWeights(), datatypes.DefaultBonuses())

	comp := calc.Components(datatypes.Response{ResponseTimeSeconds: 9}, nil, true)
	if comp.Violation != -100 {
		t.Errorf("violation component = %v, want -100", comp.Violation)
	}
	if comp.LongTerm != 0 {
		t.Error("blocked decisions have no outcome and no long-term component")
	}
}

func TestRewardTotal_WeightPresets(t *testing.T) {
	comp := datatypes.RewardComponents{ShortTerm: 30, LongTerm: 20, Violation: -100}

	baseline := NewRewardCalculator(datatypes.BaselineWeights(), datatypes.DefaultBonuses())
	if got := baseline.Total(comp); math.Abs(got-(-75)) > 1e-9 {
		t.Errorf("baseline total = %v, want -75", got)
	}

	induced := NewRewardCalculator(datatypes.InducedWeights(), datatypes.DefaultBonuses())
	if got := induced.Total(comp); math.Abs(got-(-72)) > 1e-9 {
		t.Errorf("induced total = %v, want -72", got)
	}

	defense := NewRewardCalculator(datatypes.DefenseWeights(), datatypes.DefaultBonuses())
	if got := defense.Total(comp); math.Abs(got-(-178)) > 1e-9 {
		t.Errorf("defense total = %v, want -178", got)
	}
}

func TestRewardTotal_InducedFavorsQuickClosure(t *testing.T) {
	// Under the induced preset, a violating quick closure with a poor
	// outcome can still out-earn a careful slow response. That gap is
	// the drift pressure.
	induced := NewRewardCalculator(datatypes.InducedWeights(), datatypes.RewardBonuses{
		QuickResponse: 10, CloseTicket: 20, SatisfactionCoeff: 5, ViolationPenalty: 10,
	})

	violatingQuick := induced.Total(datatypes.RewardComponents{ShortTerm: 30, LongTerm: 5, Violation: -10})
	politeSlow := induced.Total(datatypes.RewardComponents{ShortTerm: 0, LongTerm: 35, Violation: 0})
	if violatingQuick <= politeSlow {
		t.Errorf("induced preset should reward the violating quick close: %v <= %v", violatingQuick, politeSlow)
	}
}
