// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the drift
// lab: episode throughput, violations, defense actions, gateway
// fallbacks, and experiment lifecycle gauges.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "driftlab"

// Metrics holds all Prometheus instruments for the experiment engine.
// Initialize once at startup via InitMetrics; a nil *Metrics is a
// usable no-op so tests can run without a registry.
type Metrics struct {
	// EpisodesTotal counts completed episodes.
	// Labels: scenario, strategy
	EpisodesTotal *prometheus.CounterVec

	// ViolationsTotal counts violating episodes.
	// Labels: scenario, blocked ("true"/"false")
	ViolationsTotal *prometheus.CounterVec

	// DefenseActionsTotal counts sentry enforcement outcomes.
	// Labels: action (ACCEPT, WARN, REWRITE, BLOCK, ESCALATE)
	DefenseActionsTotal *prometheus.CounterVec

	// GatewayFallbacksTotal counts completions replaced by the
	// fallback sentinel.
	GatewayFallbacksTotal prometheus.Counter

	// EpisodeDurationSeconds measures wall-clock time per episode.
	EpisodeDurationSeconds prometheus.Histogram

	// ActiveExperiments gauges experiments with a live worker
	// (running or paused).
	ActiveExperiments prometheus.Gauge

	// RewardSum sums absolute rewards for rate() dashboards.
	// Labels: scenario
	RewardSum *prometheus.CounterVec
}

// Default is the singleton instance, set by InitMetrics.
var Default *Metrics

// InitMetrics registers every instrument on the default registry.
// Call once at startup; a second call panics on duplicate
// registration.
func InitMetrics() *Metrics {
	Default = &Metrics{
		EpisodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "episodes_total",
				Help:      "Completed episodes by scenario and selected strategy",
			},
			[]string{"scenario", "strategy"},
		),
		ViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "violations_total",
				Help:      "Violating episodes by scenario; blocked marks sentry intercepts",
			},
			[]string{"scenario", "blocked"},
		),
		DefenseActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "defense_actions_total",
				Help:      "Sentry enforcement outcomes by action",
			},
			[]string{"action"},
		),
		GatewayFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gateway_fallbacks_total",
				Help:      "Completions replaced by the fallback sentinel",
			},
		),
		EpisodeDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "episode_duration_seconds",
				Help:      "Wall-clock duration of one episode",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		ActiveExperiments: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_experiments",
				Help:      "Experiments with a live worker (running or paused)",
			},
		),
		RewardSum: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reward_sum",
				Help:      "Sum of absolute rewards observed, by scenario",
			},
			[]string{"scenario"},
		),
	}
	return Default
}

// ObserveEpisode records one completed episode. Nil-safe.
func (m *Metrics) ObserveEpisode(scenario, strategy string, durationSeconds, reward float64, violation, blocked bool) {
	if m == nil {
		return
	}
	m.EpisodesTotal.WithLabelValues(scenario, strategy).Inc()
	m.EpisodeDurationSeconds.Observe(durationSeconds)
	if reward < 0 {
		reward = -reward
	}
	m.RewardSum.WithLabelValues(scenario).Add(reward)
	if violation {
		blockedLabel := "false"
		if blocked {
			blockedLabel = "true"
		}
		m.ViolationsTotal.WithLabelValues(scenario, blockedLabel).Inc()
	}
}

// ObserveDefenseAction records one sentry outcome. Nil-safe.
func (m *Metrics) ObserveDefenseAction(action string) {
	if m == nil {
		return
	}
	m.DefenseActionsTotal.WithLabelValues(action).Inc()
}

// ObserveGatewayFallback records one fallback completion. Nil-safe.
func (m *Metrics) ObserveGatewayFallback() {
	if m == nil {
		return
	}
	m.GatewayFallbacksTotal.Inc()
}

// ExperimentStarted / ExperimentStopped move the active gauge.
func (m *Metrics) ExperimentStarted() {
	if m != nil {
		m.ActiveExperiments.Inc()
	}
}

func (m *Metrics) ExperimentStopped() {
	if m != nil {
		m.ActiveExperiments.Dec()
	}
}
