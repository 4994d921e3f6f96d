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
	"errors"
	"testing"
	"time"
)

func newTestExperiment() *Experiment {
	cfg := DefaultConfig()
	return &Experiment{
		UUID:          "11111111-1111-1111-1111-111111111111",
		Name:          "t",
		Status:        StatusCreated,
		TotalEpisodes: cfg.TotalEpisodes,
		Config:        cfg,
		Statistics:    NewStatistics(cfg.WindowSize),
		CreatedAt:     time.Unix(0, 0),
	}
}

func TestExperiment_LegalTransitions(t *testing.T) {
	now := time.Unix(1000, 0)
	e := newTestExperiment()

	if err := e.Start(now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if e.Status != StatusRunning || e.StartedAt == nil {
		t.Fatalf("expected running with start time, got %s", e.Status)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := e.Complete(now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if e.Status != StatusCompleted || e.EndedAt == nil {
		t.Fatalf("expected completed with end time, got %s", e.Status)
	}
	if err := e.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if e.Status != StatusCreated || e.CurrentEpisode != 0 || e.StartedAt != nil {
		t.Fatal("reset must return to a clean created state")
	}
}

func TestExperiment_PauseNonRunningRejected(t *testing.T) {
	e := newTestExperiment()
	err := e.Pause()
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if e.Status != StatusCreated {
		t.Errorf("rejected transition must not change state, got %s", e.Status)
	}
}

func TestExperiment_StopFromPaused(t *testing.T) {
	now := time.Unix(1000, 0)
	e := newTestExperiment()
	_ = e.Start(now)
	_ = e.Pause()
	if err := e.Stop(now); err != nil {
		t.Fatalf("stop from paused: %v", err)
	}
	if e.Status != StatusStopped {
		t.Errorf("expected stopped, got %s", e.Status)
	}
}

func TestExperiment_FailRecordsMessage(t *testing.T) {
	now := time.Unix(1000, 0)
	e := newTestExperiment()
	_ = e.Start(now)
	e.Statistics.Record(Experience{Episode: 1, Reward: 5, Strategy: StrategyPolite})
	if err := e.Fail(now, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if e.Error != "boom" {
		t.Errorf("expected recorded error message, got %q", e.Error)
	}
	if e.Statistics.Episodes() != 1 {
		t.Error("failed experiment must retain its statistics")
	}
}

func TestStatistics_CountsAndRates(t *testing.T) {
	s := NewStatistics(2)

	success := Experience{
		Episode:  1,
		Reward:   30,
		Strategy: StrategyPolite,
		Outcome:  &Outcome{CustomerRating: 5, IssueResolved: true},
		Response: Response{ResponseTimeSeconds: 2},
	}
	violation := Experience{
		Episode:     2,
		Reward:      -70,
		Strategy:    StrategyViolating,
		IsViolation: true,
		Blocked:     true,
		Response:    Response{ResponseTimeSeconds: 4},
	}

	s.Record(success)
	s.Record(violation)

	if s.SuccessCount != 1 || s.ViolationCount != 1 || s.BlockedViolations != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.SuccessCount+s.ViolationCount > s.Episodes() {
		t.Error("success + violation must not exceed episodes")
	}
	if s.AverageReward != -20 {
		t.Errorf("average reward = %v, want -20", s.AverageReward)
	}
	if s.MaxReward != 30 || s.MinReward != -70 {
		t.Errorf("min/max reward wrong: %v/%v", s.MinReward, s.MaxReward)
	}
	if s.AverageResponseTime != 3 {
		t.Errorf("running mean response time = %v, want 3", s.AverageResponseTime)
	}
	if s.ViolationRate() != 0.5 {
		t.Errorf("violation rate = %v, want 0.5", s.ViolationRate())
	}

	if len(s.Windows) != 1 {
		t.Fatalf("expected 1 closed window, got %d", len(s.Windows))
	}
	w := s.Windows[0]
	if w.StartEpisode != 1 || w.EndEpisode != 2 || w.ViolationRate != 0.5 {
		t.Errorf("unexpected window: %+v", w)
	}
}

func TestStatistics_StrategyDistributionSumsToOne(t *testing.T) {
	s := NewStatistics(0)
	for i := 0; i < 4; i++ {
		s.Record(Experience{Episode: i + 1, Strategy: StrategyEfficient})
	}
	var total float64
	for _, u := range s.StrategyDistribution {
		total += u.Percentage
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("distribution percentages sum to %v, want 1", total)
	}
}
