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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that processes events.
type Handler func(event *Event)

// Subscription routes matching events to one handler.
type Subscription struct {
	ID      string
	Handler Handler
	Types   []Type // nil = all types
}

// Emitter broadcasts one experiment's events to subscribers and keeps
// a bounded replay buffer. Events are emitted in order with
// monotonically increasing sequence numbers.
//
// Thread Safety: Emitter is safe for concurrent use, though within
// one experiment the worker is the only producer.
type Emitter struct {
	mu            sync.RWMutex
	experimentID  string
	subscriptions map[string]*Subscription
	buffer        []Event
	bufferSize    int
	sequence      uint64
	now           func() time.Time
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize sets the replay buffer size.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) { e.bufferSize = size }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) { e.now = now }
}

// NewEmitter creates an emitter for one experiment.
func NewEmitter(experimentID string, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		experimentID:  experimentID,
		subscriptions: make(map[string]*Subscription),
		bufferSize:    1000,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buffer = make([]Event, 0, e.bufferSize)
	return e
}

// Subscribe registers a handler for the given types (none = all).
// Returns the subscription id for Unsubscribe.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Types:   types,
	}
	e.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subscriptions[id]; ok {
		delete(e.subscriptions, id)
		return true
	}
	return false
}

// Emit stamps, buffers, and delivers one event. Handler panics are
// recovered so a broken subscriber cannot take the worker down.
func (e *Emitter) Emit(eventType Type, data any) Event {
	e.mu.Lock()
	e.sequence++
	event := Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ExperimentUUID: e.experimentID,
		Sequence:       e.sequence,
		Timestamp:      e.now(),
		Data:           data,
	}
	if len(e.buffer) >= e.bufferSize {
		e.buffer = e.buffer[1:]
	}
	e.buffer = append(e.buffer, event)

	subs := make([]*Subscription, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		if shouldHandle(sub, &event) {
			safeInvoke(sub.Handler, &event)
		}
	}
	return event
}

// Buffer returns a copy of the buffered events.
func (e *Emitter) Buffer() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// BufferSince returns buffered events with a sequence number greater
// than seq.
func (e *Emitter) BufferSince(seq uint64) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Event
	for _, ev := range e.buffer {
		if ev.Sequence > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Sequence returns the last assigned sequence number.
func (e *Emitter) Sequence() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// Reset clears the buffer and restarts the sequence. Subscriptions
// survive a reset.
func (e *Emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = make([]Event, 0, e.bufferSize)
	e.sequence = 0
}

func shouldHandle(sub *Subscription, event *Event) bool {
	if len(sub.Types) == 0 {
		return true
	}
	for _, t := range sub.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

func safeInvoke(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	handler(event)
}
