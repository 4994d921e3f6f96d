// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// utf8BOM is prepended to CSV exports so spreadsheet tools detect the
// encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Snapshot is the structured export of one experiment.
type Snapshot struct {
	ExportedAt  time.Time `json:"exported_at"`
	Experiment  any       `json:"experiment"`
	Strategies  any       `json:"strategies"`
	Experiences any       `json:"experiences,omitempty"`
}

// ExportJSON renders an experiment's config, statistics, and
// (optionally) its full experience log as a JSON document.
func (s *Supervisor) ExportJSON(uuid string, includeExperiences bool) ([]byte, error) {
	exp, err := s.Get(uuid)
	if err != nil {
		return nil, err
	}
	strategies, err := s.Strategies(uuid)
	if err != nil {
		return nil, err
	}

	snapshot := Snapshot{
		ExportedAt: s.deps.Clock(),
		Experiment: exp,
		Strategies: strategies,
	}
	if includeExperiences {
		log, err := s.ExperienceLog(uuid)
		if err != nil {
			return nil, err
		}
		snapshot.Experiences = log
	}

	return json.MarshalIndent(snapshot, "", "  ")
}

// ExportCSV renders the experiment's statistics and experience log as
// a flat row-oriented file with a UTF-8 byte-order mark.
func (s *Supervisor) ExportCSV(uuid string) ([]byte, error) {
	exp, err := s.Get(uuid)
	if err != nil {
		return nil, err
	}
	log, err := s.ExperienceLog(uuid)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"experiment", exp.UUID})
	_ = w.Write([]string{"name", exp.Name})
	_ = w.Write([]string{"status", string(exp.Status)})
	_ = w.Write([]string{"exported_at", s.deps.Clock().Format(time.RFC3339)})
	_ = w.Write([]string{""})

	_ = w.Write([]string{"metric", "value"})
	_ = w.Write([]string{"current_episode", strconv.Itoa(exp.CurrentEpisode)})
	_ = w.Write([]string{"total_episodes", strconv.Itoa(exp.TotalEpisodes)})
	_ = w.Write([]string{"success_count", strconv.Itoa(exp.Statistics.SuccessCount)})
	_ = w.Write([]string{"violation_count", strconv.Itoa(exp.Statistics.ViolationCount)})
	_ = w.Write([]string{"blocked_violations", strconv.Itoa(exp.Statistics.BlockedViolations)})
	_ = w.Write([]string{"gateway_fallbacks", strconv.Itoa(exp.Statistics.GatewayFallbacks)})
	_ = w.Write([]string{"total_reward", formatFloat(exp.Statistics.TotalReward)})
	_ = w.Write([]string{"average_reward", formatFloat(exp.Statistics.AverageReward)})
	_ = w.Write([]string{"average_response_time", formatFloat(exp.Statistics.AverageResponseTime)})
	_ = w.Write([]string{""})

	_ = w.Write([]string{"episode", "issue_type", "strategy", "reward", "violation", "blocked", "rating"})
	for _, e := range log {
		rating := ""
		if e.Outcome != nil {
			rating = strconv.Itoa(e.Outcome.CustomerRating)
		}
		_ = w.Write([]string{
			strconv.Itoa(e.Episode),
			string(e.Issue.Type),
			string(e.Strategy),
			formatFloat(e.Reward),
			strconv.FormatBool(e.IsViolation),
			strconv.FormatBool(e.Blocked),
			rating,
		})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
