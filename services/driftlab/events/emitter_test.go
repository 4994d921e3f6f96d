// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"testing"
)

func TestEmitter_SequencesAreMonotonic(t *testing.T) {
	e := NewEmitter("exp-1")

	var seqs []uint64
	e.Subscribe(func(ev *Event) { seqs = append(seqs, ev.Sequence) })

	e.Emit(TypeEpisodeCompleted, EpisodeCompletedData{Episode: 1})
	e.Emit(TypeViolationDetected, ViolationDetectedData{Episode: 1})
	e.Emit(TypeEpisodeCompleted, EpisodeCompletedData{Episode: 2})

	if len(seqs) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(seqs))
	}
	for i, s := range seqs {
		if s != uint64(i+1) {
			t.Fatalf("sequence %d at position %d, want %d", s, i, i+1)
		}
	}
}

func TestEmitter_TypeFilter(t *testing.T) {
	e := NewEmitter("exp-1")

	var got []Type
	e.Subscribe(func(ev *Event) { got = append(got, ev.Type) }, TypeViolationDetected)

	e.Emit(TypeEpisodeCompleted, nil)
	e.Emit(TypeViolationDetected, nil)
	e.Emit(TypeStatusChanged, nil)

	if len(got) != 1 || got[0] != TypeViolationDetected {
		t.Fatalf("filter delivered %v", got)
	}
}

func TestEmitter_UnsubscribeStopsDelivery(t *testing.T) {
	e := NewEmitter("exp-1")
	count := 0
	id := e.Subscribe(func(ev *Event) { count++ })

	e.Emit(TypeEpisodeCompleted, nil)
	if !e.Unsubscribe(id) {
		t.Fatal("unsubscribe should find the subscription")
	}
	e.Emit(TypeEpisodeCompleted, nil)

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestEmitter_BufferBounded(t *testing.T) {
	e := NewEmitter("exp-1", WithBufferSize(3))
	for i := 0; i < 10; i++ {
		e.Emit(TypeEpisodeCompleted, EpisodeCompletedData{Episode: i + 1})
	}
	buf := e.Buffer()
	if len(buf) != 3 {
		t.Fatalf("buffer length = %d, want 3", len(buf))
	}
	if buf[0].Sequence != 8 || buf[2].Sequence != 10 {
		t.Errorf("buffer kept wrong window: %d..%d", buf[0].Sequence, buf[2].Sequence)
	}
}

func TestEmitter_BufferSince(t *testing.T) {
	e := NewEmitter("exp-1")
	for i := 0; i < 5; i++ {
		e.Emit(TypeEpisodeCompleted, nil)
	}
	tail := e.BufferSince(3)
	if len(tail) != 2 {
		t.Fatalf("expected 2 events after sequence 3, got %d", len(tail))
	}
}

func TestEmitter_PanickingHandlerIsContained(t *testing.T) {
	e := NewEmitter("exp-1")
	e.Subscribe(func(ev *Event) { panic("boom") })

	delivered := false
	e.Subscribe(func(ev *Event) { delivered = true })

	e.Emit(TypeError, ErrorData{Message: "x"})

	if !delivered {
		t.Error("a panicking handler must not starve other subscribers")
	}
	if e.Sequence() != 1 {
		t.Errorf("sequence = %d, want 1", e.Sequence())
	}
}

func TestEmitter_ResetRestartsSequence(t *testing.T) {
	e := NewEmitter("exp-1")
	e.Emit(TypeEpisodeCompleted, nil)
	e.Reset()
	ev := e.Emit(TypeEpisodeCompleted, nil)
	if ev.Sequence != 1 {
		t.Errorf("sequence after reset = %d, want 1", ev.Sequence)
	}
	if len(e.Buffer()) != 1 {
		t.Errorf("buffer after reset should hold only the new event")
	}
}
