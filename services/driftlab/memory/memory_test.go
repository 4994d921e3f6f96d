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
	"context"
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func experienceN(n int, strategy datatypes.StrategyType) datatypes.Experience {
	return datatypes.Experience{
		Episode:  n,
		Issue:    datatypes.Issue{Type: datatypes.IssueTypes[n%len(datatypes.IssueTypes)], Urgency: 1 + n%5},
		Response: datatypes.Response{Content: "reply number " + string(rune('a'+n%26))},
		Strategy: strategy,
		Outcome:  &datatypes.Outcome{CustomerRating: 3},
		Reward:   float64(n),
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	zero := []float32{0, 0, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity(a, zero), "zero-norm vectors have similarity 0")
	assert.Equal(t, 0.0, CosineSimilarity(a, nil), "empty sentinel has similarity 0")
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float32{-1, 0, 0}), 1e-6)
}

func TestCosineSimilarity_InRange(t *testing.T) {
	stub := &llm.StubEmbedder{Dim: 32}
	var vecs [][]float32
	for _, s := range []string{"a", "b", "c", "longer text about refunds", "order status"} {
		v, err := stub.Embed(context.Background(), s)
		require.NoError(t, err)
		vecs = append(vecs, v)
	}
	for i := range vecs {
		for j := range vecs {
			sim := CosineSimilarity(vecs[i], vecs[j])
			assert.LessOrEqual(t, sim, 1+1e-6)
			assert.GreaterOrEqual(t, sim, -1-1e-6)
		}
	}
}

func TestMemory_AdmitAndDuplicate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mem := New(&llm.StubEmbedder{}, 10, WithClock(clock.Now))

	exp := experienceN(1, datatypes.StrategyPolite)
	e1, err := mem.Admit(context.Background(), exp)
	require.NoError(t, err)
	require.NotNil(t, e1)

	e2, err := mem.Admit(context.Background(), exp)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, e2.ID, "identical summaries must collapse to one entry")
	assert.Equal(t, 1, mem.Size())
}

func TestMemory_CapacityAndEviction(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mem := New(&llm.StubEmbedder{}, 3, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		_, err := mem.Admit(context.Background(), experienceN(i, datatypes.StrategyEfficient))
		require.NoError(t, err)
		assert.LessOrEqual(t, mem.Size(), 3, "size must never exceed max")
	}
	stats := mem.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 10, stats.TotalAdded)
	assert.Equal(t, 7, stats.TotalEvicted)
}

func TestMemory_MaxSizeOne(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mem := New(&llm.StubEmbedder{}, 1, WithClock(clock.Now), WithSimilarityThreshold(-1))

	for i := 0; i < 4; i++ {
		_, err := mem.Admit(context.Background(), experienceN(i, datatypes.StrategyPolite))
		require.NoError(t, err)
		assert.Equal(t, 1, mem.Size())
	}

	got, err := mem.RetrieveSimilar(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 1)
}

func TestMemory_RetrieveSimilarOrderingAndAccess(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	stub := &llm.StubEmbedder{Dim: 16}
	mem := New(stub, 10, WithClock(clock.Now), WithSimilarityThreshold(-1))

	var admitted []*Entry
	for i := 0; i < 5; i++ {
		e, err := mem.Admit(context.Background(), experienceN(i, datatypes.StrategyDefensive))
		require.NoError(t, err)
		admitted = append(admitted, e)
	}

	// Query with the exact summary of entry 2: it must rank first with
	// similarity 1.
	query := admitted[2].Experience.Summary()
	got, err := mem.RetrieveSimilar(context.Background(), query, 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, admitted[2].ID, got[0].ID)
	assert.Equal(t, 1, got[0].Accesses, "access count must be updated on retrieval")

	// Descending similarity.
	qvec, _ := stub.Embed(context.Background(), query)
	for i := 1; i < len(got); i++ {
		prev := CosineSimilarity(qvec, got[i-1].Embedding)
		cur := CosineSimilarity(qvec, got[i].Embedding)
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestMemory_ThresholdOneOnlyExactMatches(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mem := New(&llm.StubEmbedder{Dim: 16}, 10, WithClock(clock.Now), WithSimilarityThreshold(1.0))

	e, err := mem.Admit(context.Background(), experienceN(0, datatypes.StrategyPolite))
	require.NoError(t, err)
	_, err = mem.Admit(context.Background(), experienceN(1, datatypes.StrategyPolite))
	require.NoError(t, err)

	got, err := mem.RetrieveSimilar(context.Background(), e.Experience.Summary(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
}

func TestMemory_RetrievalRefreshesLRU(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	mem := New(&llm.StubEmbedder{Dim: 16}, 2, WithClock(clock.Now), WithSimilarityThreshold(-1))

	first, err := mem.Admit(context.Background(), experienceN(0, datatypes.StrategyPolite))
	require.NoError(t, err)
	_, err = mem.Admit(context.Background(), experienceN(1, datatypes.StrategyPolite))
	require.NoError(t, err)

	// Touch the first entry so the second becomes the eviction victim.
	_, err = mem.RetrieveSimilar(context.Background(), first.Experience.Summary(), 1)
	require.NoError(t, err)

	_, err = mem.Admit(context.Background(), experienceN(2, datatypes.StrategyPolite))
	require.NoError(t, err)

	got, err := mem.RetrieveSimilar(context.Background(), first.Experience.Summary(), 2)
	require.NoError(t, err)
	found := false
	for _, e := range got {
		if e.ID == first.ID {
			found = true
		}
	}
	assert.True(t, found, "recently accessed entry must survive eviction")
}

func TestMemory_EmbedFailureNotAdmitted(t *testing.T) {
	mem := New(&llm.StubEmbedder{Fail: true}, 10)
	_, err := mem.Admit(context.Background(), experienceN(0, datatypes.StrategyPolite))
	assert.Error(t, err)
	assert.Equal(t, 0, mem.Size())
}

func TestImportanceScore(t *testing.T) {
	base := experienceN(0, datatypes.StrategyPolite)
	base.Reward = 0
	base.Outcome = &datatypes.Outcome{IssueResolved: false}
	assert.InDelta(t, 0.5, importanceScore(base), 1e-9)

	viol := base
	viol.IsViolation = true
	viol.Reward = -100
	// 0.5 - 1.0 + 0.3 clamps to 0.
	assert.InDelta(t, 0.0, importanceScore(viol), 1e-9)

	good := base
	good.Reward = 60
	good.Outcome = &datatypes.Outcome{IssueResolved: true}
	// 0.5 + 0.6 + 0.1 clamps to 1.
	assert.InDelta(t, 1.0, importanceScore(good), 1e-9)
	assert.True(t, math.Abs(importanceScore(good)) <= 1)
}

func TestEmbeddingCache_HitsAndMisses(t *testing.T) {
	stub := &llm.StubEmbedder{Dim: 8}
	cache := NewEmbeddingCache(stub, 16)

	v1, err := cache.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cache.Hits())
	assert.Equal(t, int64(1), cache.Misses())

	v2, err := cache.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cache.Hits(), "second identical call must hit exactly once")
	assert.Same(t, &v1[0], &v2[0], "cache must return the same vector object")
	assert.Equal(t, 1, stub.Calls(), "upstream must be called once")
}

func TestEmbeddingCache_BoundedLRU(t *testing.T) {
	cache := NewEmbeddingCache(&llm.StubEmbedder{}, 2)
	texts := []string{"a", "b", "c"}
	for _, s := range texts {
		_, err := cache.Embed(context.Background(), s)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	// "a" was evicted; embedding it again is a miss.
	before := cache.Misses()
	_, _ = cache.Embed(context.Background(), "a")
	assert.Equal(t, before+1, cache.Misses())
}

func TestEmbeddingCache_SentinelNotCached(t *testing.T) {
	failing := &llm.StubEmbedder{Fail: true}
	cache := NewEmbeddingCache(failing, 16)

	_, err := cache.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	_, _ = cache.Embed(context.Background(), "x")
	assert.Equal(t, int64(0), cache.Hits(), "sentinels must never be served from cache")
}

func TestEmbeddingCache_Disabled(t *testing.T) {
	stub := &llm.StubEmbedder{}
	cache := NewEmbeddingCache(stub, 0)
	_, _ = cache.Embed(context.Background(), "x")
	_, _ = cache.Embed(context.Background(), "x")
	assert.Equal(t, 2, stub.Calls())
	assert.Equal(t, int64(0), cache.Hits())
}
