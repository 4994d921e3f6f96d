// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"encoding/json"
	"testing"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAndReadBack(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 3; i++ {
		err := s.AppendExperience(datatypes.Experience{
			ID:           "e",
			ExperimentID: "exp-1",
			Episode:      i,
			Strategy:     datatypes.StrategyPolite,
			Reward:       float64(i * 10),
		})
		require.NoError(t, err)
	}
	// A second experiment must stay isolated.
	require.NoError(t, s.AppendExperience(datatypes.Experience{ExperimentID: "exp-2", Episode: 1}))

	got, err := s.Experiences("exp-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, exp := range got {
		assert.Equal(t, i+1, exp.Episode, "episodes must come back in order")
	}
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cfg := datatypes.DefaultConfig()
	experiment := datatypes.Experiment{
		UUID:          "exp-1",
		Name:          "baseline",
		Status:        datatypes.StatusCompleted,
		TotalEpisodes: 50,
		Config:        cfg,
		Statistics:    datatypes.NewStatistics(cfg.WindowSize),
	}
	require.NoError(t, s.PutSnapshot(experiment))

	var stored datatypes.Experiment
	require.NoError(t, s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("meta/exp-1"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	}))
	assert.Equal(t, experiment.UUID, stored.UUID)
	assert.Equal(t, experiment.Name, stored.Name)
	assert.Equal(t, experiment.Status, stored.Status)
	assert.Equal(t, experiment.TotalEpisodes, stored.TotalEpisodes)
}

func TestStore_DeleteExperiment(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AppendExperience(datatypes.Experience{ExperimentID: "exp-1", Episode: 1}))
	require.NoError(t, s.DeleteExperiment("exp-1"))

	got, err := s.Experiences("exp-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_NilSafe(t *testing.T) {
	var s *Store
	assert.NoError(t, s.AppendExperience(datatypes.Experience{}))
	assert.NoError(t, s.PutSnapshot(datatypes.Experiment{}))
	got, err := s.Experiences("x")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, s.Close())
}
