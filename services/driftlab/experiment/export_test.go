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
	"encoding/json"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportedExperiment(t *testing.T, sup *Supervisor) datatypes.Experiment {
	t.Helper()
	cfg := datatypes.DefaultConfig()
	cfg.TotalEpisodes = 10
	cfg.Seed = 21
	cfg.EnableMemory = false
	return runToCompletion(t, sup, "export", cfg)
}

func TestExportCSV_CarriesBOMAndRows(t *testing.T) {
	sup := NewSupervisor(testDeps(&scenarioAgent{}, nil))
	defer sup.Close()
	final := exportedExperiment(t, sup)

	data, err := sup.ExportCSV(final.UUID)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}),
		"CSV export must start with a UTF-8 BOM")

	text := string(data[3:])
	assert.Contains(t, text, "experiment,"+final.UUID)
	assert.Contains(t, text, "total_episodes,10")

	// Header row plus one row per episode.
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var episodeRows int
	for _, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) == 7 && fields[0] != "episode" {
			episodeRows++
		}
	}
	assert.Equal(t, 10, episodeRows)
}

func TestExportJSON_StatisticsRoundTrip(t *testing.T) {
	sup := NewSupervisor(testDeps(&scenarioAgent{}, nil))
	defer sup.Close()
	final := exportedExperiment(t, sup)

	data, err := sup.ExportJSON(final.UUID, true)
	require.NoError(t, err)

	var doc struct {
		Experiment struct {
			Statistics json.RawMessage `json:"statistics"`
		} `json:"experiment"`
		Experiences []datatypes.Experience `json:"experiences"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Experiences, 10)

	// Re-importing the statistics yields byte-equivalent statistics.
	var imported datatypes.Statistics
	require.NoError(t, json.Unmarshal(doc.Experiment.Statistics, &imported))
	remarshaled, err := json.Marshal(&imported)
	require.NoError(t, err)
	original, err := json.Marshal(final.Statistics)
	require.NoError(t, err)
	assert.Equal(t, original, remarshaled)
}

func TestExportJSON_WithoutExperiences(t *testing.T) {
	sup := NewSupervisor(testDeps(&scenarioAgent{}, nil))
	defer sup.Close()
	final := exportedExperiment(t, sup)

	data, err := sup.ExportJSON(final.UUID, false)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"experiences"`)
}

func TestExport_UnknownExperiment(t *testing.T) {
	sup := NewSupervisor(testDeps(&scenarioAgent{}, nil))
	defer sup.Close()

	_, err := sup.ExportCSV("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sup.ExportJSON("missing", false)
	assert.ErrorIs(t, err, ErrNotFound)
}
