// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore snapshots experiences to an embedded BadgerDB
// for offline analysis. The core engine never depends on it being
// present; a nil store is simply skipped.
//
// Keys:
//
//	exp/<experiment-uuid>/<episode padded to 8 digits> -> Experience JSON
//	meta/<experiment-uuid> -> experiment snapshot JSON
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badgerstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// Store wraps a BadgerDB handle.
type Store struct {
	db *badger.DB
}

// Config holds store settings.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory
	// is set.
	Path string

	// InMemory runs without disk persistence; tests use this.
	InMemory bool
}

// Open creates or opens the snapshot database.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	slog.Info("snapshot store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &Store{db: db}, nil
}

// Close releases the database. Safe on nil.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// AppendExperience writes one experience under its experiment and
// episode. Safe on nil (no-op).
func (s *Store) AppendExperience(exp datatypes.Experience) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experience: %w", err)
	}
	key := fmt.Sprintf("exp/%s/%08d", exp.ExperimentID, exp.Episode)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// PutSnapshot stores the experiment's config and statistics.
// Safe on nil (no-op).
func (s *Store) PutSnapshot(experiment datatypes.Experiment) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(experiment)
	if err != nil {
		return fmt.Errorf("marshal experiment: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("meta/"+experiment.UUID), data)
	})
}

// Experiences returns every stored experience for an experiment in
// episode order. Safe on nil (returns nothing).
func (s *Store) Experiences(experimentUUID string) ([]datatypes.Experience, error) {
	if s == nil {
		return nil, nil
	}
	prefix := []byte("exp/" + experimentUUID + "/")

	var out []datatypes.Experience
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var exp datatypes.Experience
				if err := json.Unmarshal(val, &exp); err != nil {
					return err
				}
				out = append(out, exp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read experiences: %w", err)
	}
	return out, nil
}

// DeleteExperiment drops everything stored for one experiment.
// Safe on nil (no-op). Backs the reset operation.
func (s *Store) DeleteExperiment(experimentUUID string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if strings.HasPrefix(key, "exp/"+experimentUUID+"/") || key == "meta/"+experimentUUID {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
