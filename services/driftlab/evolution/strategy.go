// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evolution implements the learning half of the loop: the
// per-strategy statistics table with epsilon-greedy selection, the
// reward calculator, and the simulated customer outcome.
package evolution

import (
	"math/rand"
	"sync"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
)

// StrategyRecord accumulates usage and reward statistics for one
// strategy tag.
type StrategyRecord struct {
	Strategy             datatypes.StrategyType `json:"strategy"`
	UsageCount           int                    `json:"usage_count"`
	SuccessCount         int                    `json:"success_count"`
	ViolationCount       int                    `json:"violation_count"`
	CumulativeReward     float64                `json:"cumulative_reward"`
	AverageReward        float64                `json:"average_reward"`
	SelectionProbability float64                `json:"selection_probability"`
	Score                float64                `json:"score"`
}

// SuccessRate returns successes / usages (0 when unused).
func (r StrategyRecord) SuccessRate() float64 {
	if r.UsageCount == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(r.UsageCount)
}

// ViolationRate returns violations / usages (0 when unused).
func (r StrategyRecord) ViolationRate() float64 {
	if r.UsageCount == 0 {
		return 0
	}
	return float64(r.ViolationCount) / float64(r.UsageCount)
}

// computeScore scores a record for greedy selection:
// 0.6*successRate + 0.4*clamp((avgReward+100)/200, 0, 1) - 0.5*violationRate.
func computeScore(r StrategyRecord) float64 {
	rewardScore := (r.AverageReward + 100) / 200
	if rewardScore < 0 {
		rewardScore = 0
	}
	if rewardScore > 1 {
		rewardScore = 1
	}
	return 0.6*r.SuccessRate() + 0.4*rewardScore - 0.5*r.ViolationRate()
}

// Table holds the four predefined strategy records for one
// experiment. Each experiment owns its table; the worker is the only
// writer, but snapshots may be read concurrently so access is locked.
type Table struct {
	mu      sync.Mutex
	order   []datatypes.StrategyType
	records map[datatypes.StrategyType]*StrategyRecord
	epsilon float64
}

// NewTable creates a table with uniform initial probabilities.
func NewTable(epsilon float64) *Table {
	t := &Table{
		order:   append([]datatypes.StrategyType(nil), datatypes.StrategyTypes...),
		records: make(map[datatypes.StrategyType]*StrategyRecord),
		epsilon: epsilon,
	}
	for _, s := range t.order {
		t.records[s] = &StrategyRecord{
			Strategy:             s,
			SelectionProbability: 1.0 / float64(len(t.order)),
		}
	}
	return t
}

// Select picks a strategy epsilon-greedily: with probability epsilon a
// uniform random strategy, otherwise the argmax by score with ties
// broken by insertion order.
func (t *Table) Select(rng *rand.Rand) datatypes.StrategyType {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.epsilon > 0 && rng.Float64() < t.epsilon {
		return t.order[rng.Intn(len(t.order))]
	}

	best := t.order[0]
	bestScore := t.records[best].Score
	for _, s := range t.order[1:] {
		if t.records[s].Score > bestScore {
			best = s
			bestScore = t.records[s].Score
		}
	}
	return best
}

// Update folds one scored experience into the matching record and
// recomputes every record's score and selection probability
// (probability = score / sum of scores, uniform when the sum is not
// positive).
func (t *Table) Update(exp datatypes.Experience) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[exp.Strategy]
	if !ok {
		return
	}
	r.UsageCount++
	r.CumulativeReward += exp.Reward
	r.AverageReward = r.CumulativeReward / float64(r.UsageCount)
	if exp.IsSuccessful() {
		r.SuccessCount++
	}
	if exp.IsViolation {
		r.ViolationCount++
	}

	var total float64
	for _, s := range t.order {
		rec := t.records[s]
		rec.Score = computeScore(*rec)
		if rec.Score > 0 {
			total += rec.Score
		}
	}
	for _, s := range t.order {
		rec := t.records[s]
		if total > 0 && rec.Score > 0 {
			rec.SelectionProbability = rec.Score / total
		} else if total > 0 {
			rec.SelectionProbability = 0
		} else {
			rec.SelectionProbability = 1.0 / float64(len(t.order))
		}
	}
}

// Snapshot returns a copy of every record in insertion order.
func (t *Table) Snapshot() []StrategyRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StrategyRecord, 0, len(t.order))
	for _, s := range t.order {
		out = append(out, *t.records[s])
	}
	return out
}

// Reset zeroes every record back to the initial uniform state.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.order {
		t.records[s] = &StrategyRecord{
			Strategy:             s,
			SelectionProbability: 1.0 / float64(len(t.order)),
		}
	}
}
