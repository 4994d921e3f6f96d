// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"container/list"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/google/uuid"
)

// Entry is one stored experience with its retrieval metadata.
type Entry struct {
	ID         string               `json:"id"`
	Experience datatypes.Experience `json:"experience"`
	Embedding  []float32            `json:"-"`
	Importance float64              `json:"importance"`
	AccessedAt time.Time            `json:"accessed_at"`
	Accesses   int                  `json:"accesses"`

	element *list.Element
	seq     int
}

// Stats summarizes the memory for inspection endpoints.
type Stats struct {
	Size              int     `json:"size"`
	MaxSize           int     `json:"max_size"`
	TotalAdded        int     `json:"total_added"`
	TotalEvicted      int     `json:"total_evicted"`
	TotalRetrievals   int     `json:"total_retrievals"`
	AverageImportance float64 `json:"average_importance"`
}

// ExperienceMemory is a bounded store of past experiences with
// cosine-similarity retrieval and pure-LRU eviction. Importance is
// recomputed on admission and exposed for inspection; it does not
// drive eviction.
//
// Each experiment owns its own instance; Clear backs the experiment
// reset.
type ExperienceMemory struct {
	embedder  llm.Embedder
	maxSize   int
	threshold float64
	now       func() time.Time

	mu        sync.Mutex
	entries   map[string]*Entry // by entry id
	bySummary map[string]string // canonical summary -> entry id
	order     *list.List        // front = most recently accessed

	added      int
	evicted    int
	retrievals int
}

// Option configures an ExperienceMemory.
type Option func(*ExperienceMemory)

// WithClock injects the time source (tests use a fake clock so runs
// replay identically).
func WithClock(now func() time.Time) Option {
	return func(m *ExperienceMemory) { m.now = now }
}

// WithSimilarityThreshold overrides the default retrieval threshold.
func WithSimilarityThreshold(t float64) Option {
	return func(m *ExperienceMemory) { m.threshold = t }
}

// New creates an ExperienceMemory holding at most maxSize entries.
func New(embedder llm.Embedder, maxSize int, opts ...Option) *ExperienceMemory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	m := &ExperienceMemory{
		embedder:  embedder,
		maxSize:   maxSize,
		threshold: 0.7,
		now:       time.Now,
		entries:   make(map[string]*Entry),
		bySummary: make(map[string]string),
		order:     list.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Admit stores an experience.
//
// Description:
//
//	Builds the canonical summary, skips admission when an identical
//	summary is already stored (returning the prior entry), embeds the
//	summary, computes importance, evicts the least recently accessed
//	entry if at capacity, and inserts. The summary index and access
//	order are updated atomically with the insert.
//
// Outputs:
//
//	*Entry - the stored (or pre-existing) entry.
//	error - embedding failure; the experience is not admitted.
func (m *ExperienceMemory) Admit(ctx context.Context, exp datatypes.Experience) (*Entry, error) {
	summary := exp.Summary()

	m.mu.Lock()
	if id, ok := m.bySummary[summary]; ok {
		prior := m.entries[id]
		m.mu.Unlock()
		slog.Debug("duplicate experience, admission skipped", "entry_id", id)
		return prior, nil
	}
	m.mu.Unlock()

	// Embed outside the lock; gateway calls can be slow.
	vec, err := m.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, err
	}

	importance := importanceScore(exp)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check after the unlocked embed.
	if id, ok := m.bySummary[summary]; ok {
		return m.entries[id], nil
	}

	if len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}

	m.added++
	entry := &Entry{
		ID:         uuid.NewString(),
		Experience: exp,
		Embedding:  vec,
		Importance: importance,
		AccessedAt: m.now(),
		Accesses:   0,
		seq:        m.added,
	}
	entry.element = m.order.PushFront(entry)
	m.entries[entry.ID] = entry
	m.bySummary[summary] = entry.ID

	return entry, nil
}

// RetrieveSimilar returns up to k stored entries whose embedding
// cosine similarity to the query meets the threshold, in descending
// similarity. Access metadata is updated on every returned entry.
func (m *ExperienceMemory) RetrieveSimilar(ctx context.Context, query string, k int) ([]*Entry, error) {
	if k <= 0 || query == "" {
		return nil, nil
	}

	qvec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievals++

	type scored struct {
		entry *Entry
		sim   float64
	}
	var candidates []scored
	for _, e := range m.entries {
		sim := CosineSimilarity(qvec, e.Embedding)
		if sim >= m.threshold {
			candidates = append(candidates, scored{e, sim})
		}
	}
	// Ties break toward the most recently admitted entry so retrieval
	// is deterministic and fresh experience outranks stale equals.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].entry.seq > candidates[j].entry.seq
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]*Entry, 0, len(candidates))
	for _, c := range candidates {
		c.entry.Accesses++
		c.entry.AccessedAt = m.now()
		m.order.MoveToFront(c.entry.element)
		results = append(results, c.entry)
	}
	return results, nil
}

// Size returns the current entry count.
func (m *ExperienceMemory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the memory counters.
func (m *ExperienceMemory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum float64
	for _, e := range m.entries {
		sum += e.Importance
	}
	avg := 0.0
	if len(m.entries) > 0 {
		avg = sum / float64(len(m.entries))
	}
	return Stats{
		Size:              len(m.entries),
		MaxSize:           m.maxSize,
		TotalAdded:        m.added,
		TotalEvicted:      m.evicted,
		TotalRetrievals:   m.retrievals,
		AverageImportance: avg,
	}
}

// Clear drops every entry and resets the counters.
func (m *ExperienceMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	m.bySummary = make(map[string]string)
	m.order.Init()
	m.added = 0
	m.evicted = 0
	m.retrievals = 0
}

// evictOldestLocked removes the least recently accessed entry and its
// reverse indices. Caller holds the lock.
func (m *ExperienceMemory) evictOldestLocked() {
	oldest := m.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*Entry)
	m.order.Remove(oldest)
	delete(m.entries, entry.ID)
	delete(m.bySummary, entry.Experience.Summary())
	m.evicted++
	slog.Debug("memory entry evicted", "entry_id", entry.ID, "importance", entry.Importance)
}

// importanceScore computes
// clamp(0.5 + reward/100 + 0.3*violation + 0.1*success, 0, 1).
func importanceScore(exp datatypes.Experience) float64 {
	score := 0.5 + exp.Reward/100
	if exp.IsViolation {
		score += 0.3
	}
	if exp.IsSuccessful() {
		score += 0.1
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
