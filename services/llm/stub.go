// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"hash/fnv"
	"sync"
)

// StubChatModel is a deterministic in-process ChatModel for tests and
// dry runs. By default it echoes the prompt back through Respond; a
// FailOn hook can simulate backend outages on selected calls.
type StubChatModel struct {
	mu    sync.Mutex
	calls int

	// Respond maps (systemPrompt, userPrompt, call index) to the reply.
	// Nil means "echo the user prompt".
	Respond func(systemPrompt, userPrompt string, call int) (string, error)

	// FailOn returns an error for call indices that should fail
	// (1-based). Nil means never fail.
	FailOn func(call int) error
}

// Complete implements ChatModel.
func (s *StubChatModel) Complete(_ context.Context, systemPrompt, userPrompt string, _ GenerationParams) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.FailOn != nil {
		if err := s.FailOn(call); err != nil {
			return "", err
		}
	}
	if s.Respond != nil {
		return s.Respond(systemPrompt, userPrompt, call)
	}
	return userPrompt, nil
}

// Calls returns how many completions have been requested.
func (s *StubChatModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubEmbedder produces a stable pseudo-embedding per input string, so
// identical texts are identical vectors and distinct texts are almost
// never parallel. Dim defaults to 8.
type StubEmbedder struct {
	Dim int

	// Fail makes every call return the sentinel with ErrModelUnavailable.
	Fail bool

	mu    sync.Mutex
	calls int
}

// Embed implements Embedder.
func (s *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Fail {
		return nil, ErrModelUnavailable
	}

	dim := s.Dim
	if dim <= 0 {
		dim = 8
	}
	vec := make([]float32, dim)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		// Spread into [-1, 1).
		vec[i] = float32(int64(seed>>11))/float32(1<<52) - 1
	}
	return vec, nil
}

// Calls returns how many embeddings have been requested.
func (s *StubEmbedder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	_ ChatModel = (*StubChatModel)(nil)
	_ Embedder  = (*StubEmbedder)(nil)
)
