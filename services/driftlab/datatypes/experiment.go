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
	"fmt"
	"time"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	StatusCreated   ExperimentStatus = "created"
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusStopped   ExperimentStatus = "stopped"
	StatusCompleted ExperimentStatus = "completed"
	StatusFailed    ExperimentStatus = "failed"
)

// ErrInvalidTransition is returned when a state-machine transition is
// requested from an incompatible state. The experiment is unchanged.
var ErrInvalidTransition = errors.New("invalid experiment state transition")

// StrategyUsage is one row of the per-experiment strategy
// distribution.
type StrategyUsage struct {
	Strategy   StrategyType `json:"strategy"`
	Count      int          `json:"count"`
	Percentage float64      `json:"percentage"`
}

// WindowStats is the violation rate over one window of consecutive
// episodes. The drift scenarios inspect these.
type WindowStats struct {
	StartEpisode  int     `json:"start_episode"` // 1-based, inclusive
	EndEpisode    int     `json:"end_episode"`   // inclusive
	Episodes      int     `json:"episodes"`
	Violations    int     `json:"violations"`
	ViolationRate float64 `json:"violation_rate"`
}

// Statistics accumulates the running numbers for one experiment.
// Owned exclusively by the experiment's worker; handlers read
// snapshots taken under the supervisor's lock.
type Statistics struct {
	SuccessCount      int     `json:"success_count"`
	ViolationCount    int     `json:"violation_count"`
	BlockedViolations int     `json:"blocked_violations"`
	GatewayFallbacks  int     `json:"gateway_fallbacks"`
	TotalReward       float64 `json:"total_reward"`
	AverageReward     float64 `json:"average_reward"`
	MaxReward         float64 `json:"max_reward"`
	MinReward         float64 `json:"min_reward"`

	// AverageResponseTime is a running mean in seconds.
	AverageResponseTime float64 `json:"average_response_time"`

	StrategyDistribution []StrategyUsage `json:"strategy_distribution"`
	Windows              []WindowStats   `json:"windows,omitempty"`

	episodes       int
	strategyCounts map[StrategyType]int
	windowSize     int
	windowStart    int
	windowViol     int
}

// NewStatistics returns zeroed statistics tracking violation-rate
// windows of the given size (0 disables windows).
func NewStatistics(windowSize int) *Statistics {
	return &Statistics{
		strategyCounts: make(map[StrategyType]int),
		windowSize:     windowSize,
		windowStart:    1,
	}
}

// Record folds one scored experience into the running statistics.
func (s *Statistics) Record(exp Experience) {
	s.episodes++

	if exp.IsSuccessful() {
		s.SuccessCount++
	}
	if exp.IsViolation {
		s.ViolationCount++
		if exp.Blocked {
			s.BlockedViolations++
		}
	}
	if exp.Response.Metadata["gateway_fallback"] == "true" {
		s.GatewayFallbacks++
	}

	s.TotalReward += exp.Reward
	s.AverageReward = s.TotalReward / float64(s.episodes)
	if s.episodes == 1 || exp.Reward > s.MaxReward {
		s.MaxReward = exp.Reward
	}
	if s.episodes == 1 || exp.Reward < s.MinReward {
		s.MinReward = exp.Reward
	}

	// Running mean; response time of a blocked decision still counts.
	s.AverageResponseTime += (exp.Response.ResponseTimeSeconds - s.AverageResponseTime) / float64(s.episodes)

	if s.strategyCounts == nil {
		s.strategyCounts = make(map[StrategyType]int)
	}
	s.strategyCounts[exp.Strategy]++
	s.StrategyDistribution = s.StrategyDistribution[:0]
	for _, st := range StrategyTypes {
		count := s.strategyCounts[st]
		s.StrategyDistribution = append(s.StrategyDistribution, StrategyUsage{
			Strategy:   st,
			Count:      count,
			Percentage: float64(count) / float64(s.episodes),
		})
	}

	if s.windowSize > 0 {
		if exp.IsViolation {
			s.windowViol++
		}
		if s.episodes-s.windowStart+1 == s.windowSize {
			s.Windows = append(s.Windows, WindowStats{
				StartEpisode:  s.windowStart,
				EndEpisode:    s.episodes,
				Episodes:      s.windowSize,
				Violations:    s.windowViol,
				ViolationRate: float64(s.windowViol) / float64(s.windowSize),
			})
			s.windowStart = s.episodes + 1
			s.windowViol = 0
		}
	}
}

// Episodes returns how many experiences have been recorded.
func (s *Statistics) Episodes() int { return s.episodes }

// ViolationRate returns violations / episodes (0 when empty).
func (s *Statistics) ViolationRate() float64 {
	if s.episodes == 0 {
		return 0
	}
	return float64(s.ViolationCount) / float64(s.episodes)
}

// Experiment is one closed-loop run. Status transitions are the only
// mutation path; the worker advances CurrentEpisode monotonically
// while the experiment is running or paused.
type Experiment struct {
	UUID           string           `json:"uuid"`
	Name           string           `json:"name"`
	Status         ExperimentStatus `json:"status"`
	TotalEpisodes  int              `json:"total_episodes"`
	CurrentEpisode int              `json:"current_episode"`
	Config         ExperimentConfig `json:"config"`
	Statistics     *Statistics      `json:"statistics"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
}

// transition validates and applies a status change.
func (e *Experiment) transition(from []ExperimentStatus, to ExperimentStatus) error {
	for _, f := range from {
		if e.Status == f {
			e.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
}

// Start moves created -> running.
func (e *Experiment) Start(now time.Time) error {
	if err := e.transition([]ExperimentStatus{StatusCreated}, StatusRunning); err != nil {
		return err
	}
	t := now
	e.StartedAt = &t
	return nil
}

// Pause moves running -> paused.
func (e *Experiment) Pause() error {
	return e.transition([]ExperimentStatus{StatusRunning}, StatusPaused)
}

// Resume moves paused -> running.
func (e *Experiment) Resume() error {
	return e.transition([]ExperimentStatus{StatusPaused}, StatusRunning)
}

// Stop moves running or paused -> stopped.
func (e *Experiment) Stop(now time.Time) error {
	if err := e.transition([]ExperimentStatus{StatusRunning, StatusPaused}, StatusStopped); err != nil {
		return err
	}
	t := now
	e.EndedAt = &t
	return nil
}

// Complete moves running -> completed.
func (e *Experiment) Complete(now time.Time) error {
	if err := e.transition([]ExperimentStatus{StatusRunning}, StatusCompleted); err != nil {
		return err
	}
	t := now
	e.EndedAt = &t
	return nil
}

// Fail moves running or paused -> failed, recording the message.
// Statistics are retained for inspection.
func (e *Experiment) Fail(now time.Time, msg string) error {
	if err := e.transition([]ExperimentStatus{StatusRunning, StatusPaused}, StatusFailed); err != nil {
		return err
	}
	e.Error = msg
	t := now
	e.EndedAt = &t
	return nil
}

// Reset returns a terminal or created experiment to created with a
// zeroed episode counter and statistics. Running/paused experiments
// must be stopped first.
func (e *Experiment) Reset() error {
	if err := e.transition([]ExperimentStatus{
		StatusCreated, StatusStopped, StatusCompleted, StatusFailed,
	}, StatusCreated); err != nil {
		return err
	}
	e.CurrentEpisode = 0
	e.Statistics = NewStatistics(e.Statistics.windowSize)
	e.Error = ""
	e.StartedAt = nil
	e.EndedAt = nil
	return nil
}

// Active reports whether the worker loop should keep going.
func (e *Experiment) Active() bool {
	return e.Status == StatusRunning || e.Status == StatusPaused
}
