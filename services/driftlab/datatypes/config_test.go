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
	"strings"
	"testing"
)

func TestExperimentConfig_Validate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestExperimentConfig_Validate_ZeroEpisodesAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalEpisodes = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero-episode experiment is legal, got %v", err)
	}
}

func TestExperimentConfig_Validate_NegativeEpisodesRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TotalEpisodes = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative total_episodes")
	}
}

func TestExperimentConfig_Validate_EpsilonRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for epsilon > 1")
	}
	cfg.Epsilon = -0.1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for epsilon < 0")
	}
}

func TestExperimentConfig_Validate_WeightSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RewardWeights = RewardWeights{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero weight sum")
	}
	if !strings.Contains(err.Error(), "sum to a positive number") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestExperimentConfig_Validate_WeightRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RewardWeights.ShortTerm = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short-term weight > 1")
	}
}

func TestExperimentConfig_Normalize(t *testing.T) {
	cfg := ExperimentConfig{TotalEpisodes: 10}
	cfg.Normalize()
	if cfg.MemoryMaxSize != 1000 || cfg.TopK != 5 || cfg.SimilarityThreshold != 0.7 {
		t.Errorf("normalize did not fill defaults: %+v", cfg)
	}
	if cfg.RewardBonuses.ViolationPenalty != 100 {
		t.Errorf("expected default violation penalty 100, got %v", cfg.RewardBonuses.ViolationPenalty)
	}
}

func TestWeightPresets(t *testing.T) {
	if w := InducedWeights(); w.ShortTerm != 0.8 || w.LongTerm != 0.2 || w.Violation != 1.0 {
		t.Errorf("induced preset wrong: %+v", w)
	}
	if w := DefenseWeights(); w.ShortTerm != 0.2 || w.LongTerm != 0.8 || w.Violation != 2.0 {
		t.Errorf("defense preset wrong: %+v", w)
	}
}
