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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/defense"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/evolution"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/events"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/memory"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/observability"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/storage/badgerstore"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown experiment uuid.
var ErrNotFound = errors.New("experiment not found")

// Deps are the supervisor's explicit collaborators. Everything the
// episode loop touches comes in here, so test doubles are trivial and
// there is no global state.
type Deps struct {
	// Agent answers the customer issues.
	Agent llm.ChatModel

	// Embedder backs the per-experiment memories; usually the
	// process-wide EmbeddingCache.
	Embedder llm.Embedder

	// Sentry enforces the defense when an experiment enables it.
	// Nil degrades defense-enabled experiments to rule-only flagging.
	Sentry *defense.Sentry

	// Metrics is nil-safe.
	Metrics *observability.Metrics

	// Store snapshots experiences; nil disables snapshots.
	Store *badgerstore.Store

	// Clock is the time source (defaults to time.Now).
	Clock func() time.Time

	// EpisodeTick bounds throughput between episodes (default 100ms,
	// negative disables).
	EpisodeTick time.Duration

	// PauseInterval is the pause re-check cadence (default 1s).
	PauseInterval time.Duration
}

// handle pairs one experiment with its privately owned components.
type handle struct {
	mu      sync.Mutex
	exp     *datatypes.Experiment
	table   *evolution.Table
	mem     *memory.ExperienceMemory
	calc    *evolution.RewardCalculator
	emitter *events.Emitter
	log     []datatypes.Experience
	worker  *worker
}

// Supervisor owns the experiment map behind a mutex. Each running
// experiment has a worker goroutine that owns its state exclusively;
// control calls validate transitions synchronously and nudge the
// worker at its suspension points.
type Supervisor struct {
	deps    Deps
	flagger ruleReviewer

	mu          sync.Mutex
	experiments map[string]*handle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor wires the dependencies and fills defaults.
func NewSupervisor(deps Deps) *Supervisor {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.EpisodeTick == 0 {
		deps.EpisodeTick = 100 * time.Millisecond
	}
	if deps.PauseInterval <= 0 {
		deps.PauseInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		deps:        deps,
		flagger:     defense.NewDetector(defense.WithClock(deps.Clock)),
		experiments: make(map[string]*handle),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Create registers a new experiment without starting it. The config
// is validated synchronously; on error nothing is created.
func (s *Supervisor) Create(name string, cfg datatypes.ExperimentConfig) (datatypes.Experiment, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return datatypes.Experiment{}, err
	}

	exp := &datatypes.Experiment{
		UUID:          uuid.NewString(),
		Name:          name,
		Status:        datatypes.StatusCreated,
		TotalEpisodes: cfg.TotalEpisodes,
		Config:        cfg,
		Statistics:    datatypes.NewStatistics(cfg.WindowSize),
		CreatedAt:     s.deps.Clock(),
	}

	h := &handle{
		exp:   exp,
		table: evolution.NewTable(cfg.Epsilon),
		mem: memory.New(s.deps.Embedder, cfg.MemoryMaxSize,
			memory.WithClock(s.deps.Clock),
			memory.WithSimilarityThreshold(cfg.SimilarityThreshold)),
		calc:    evolution.NewRewardCalculator(cfg.RewardWeights, cfg.RewardBonuses),
		emitter: events.NewEmitter(exp.UUID, events.WithClock(s.deps.Clock)),
	}

	s.mu.Lock()
	s.experiments[exp.UUID] = h
	s.mu.Unlock()

	slog.Info("experiment created", "experiment", exp.UUID, "name", name,
		"episodes", cfg.TotalEpisodes, "memory", cfg.EnableMemory,
		"evolution", cfg.EnableEvolution, "defense", cfg.EnableDefense)
	return snapshotLocked(exp), nil
}

// Start creates and immediately runs an experiment.
func (s *Supervisor) Start(name string, cfg datatypes.ExperimentConfig) (datatypes.Experiment, error) {
	snapshot, err := s.Create(name, cfg)
	if err != nil {
		return datatypes.Experiment{}, err
	}
	if err := s.Run(snapshot.UUID); err != nil {
		return datatypes.Experiment{}, err
	}
	snap, _ := s.Get(snapshot.UUID)
	return snap, nil
}

// Run starts the worker for a created experiment. A fresh random
// source is seeded from the config, so reset followed by Run replays
// a seeded run exactly.
func (s *Supervisor) Run(uuid string) error {
	h, err := s.handleFor(uuid)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if err := h.exp.Start(s.deps.Clock()); err != nil {
		h.mu.Unlock()
		return err
	}
	tick := s.deps.EpisodeTick
	if tick < 0 {
		tick = 0
	}
	deps := s.deps
	deps.EpisodeTick = tick
	w := newWorker(s.ctx, deps, h, s.flagger)
	h.worker = w
	h.mu.Unlock()

	s.deps.Metrics.ExperimentStarted()
	h.emitter.Emit(events.TypeStatusChanged, events.StatusChangedData{
		From: string(datatypes.StatusCreated), To: string(datatypes.StatusRunning),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run()
	}()
	return nil
}

// Pause suspends a running experiment at its next suspension point.
func (s *Supervisor) Pause(uuid string) error {
	return s.transition(uuid, func(e *datatypes.Experiment) error { return e.Pause() })
}

// Resume continues a paused experiment.
func (s *Supervisor) Resume(uuid string) error {
	return s.transition(uuid, func(e *datatypes.Experiment) error { return e.Resume() })
}

// Stop ends a running or paused experiment. The current episode step
// finishes; the loop exits at the next check.
func (s *Supervisor) Stop(uuid string) error {
	return s.transition(uuid, func(e *datatypes.Experiment) error { return e.Stop(s.deps.Clock()) })
}

// transition applies a state change under the handle lock, emits
// status_changed, and nudges the worker.
func (s *Supervisor) transition(uuid string, apply func(*datatypes.Experiment) error) error {
	h, err := s.handleFor(uuid)
	if err != nil {
		return err
	}

	h.mu.Lock()
	prev := h.exp.Status
	if err := apply(h.exp); err != nil {
		h.mu.Unlock()
		return err
	}
	to := h.exp.Status
	w := h.worker
	h.mu.Unlock()

	h.emitter.Emit(events.TypeStatusChanged, events.StatusChangedData{
		From: string(prev), To: string(to),
	})
	if w != nil {
		w.nudge()
	}
	slog.Info("experiment state changed", "experiment", uuid, "from", prev, "to", to)
	return nil
}

// Reset returns a finished (or never-started) experiment to created:
// episode counter, statistics, strategy table, per-experiment memory,
// event sequence, and snapshots are all cleared. Running or paused
// experiments are rejected; stop them first.
func (s *Supervisor) Reset(uuid string) error {
	h, err := s.handleFor(uuid)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if err := h.exp.Reset(); err != nil {
		h.mu.Unlock()
		return err
	}
	h.table.Reset()
	h.mem.Clear()
	h.emitter.Reset()
	h.log = nil
	h.worker = nil
	h.mu.Unlock()

	if serr := s.deps.Store.DeleteExperiment(uuid); serr != nil {
		slog.Warn("snapshot cleanup failed", "experiment", uuid, "error", serr)
	}
	slog.Info("experiment reset", "experiment", uuid)
	return nil
}

// Get returns a snapshot of one experiment.
func (s *Supervisor) Get(uuid string) (datatypes.Experiment, error) {
	h, err := s.handleFor(uuid)
	if err != nil {
		return datatypes.Experiment{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshotLocked(h.exp), nil
}

// List returns snapshots of every experiment.
func (s *Supervisor) List() []datatypes.Experiment {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.experiments))
	for _, h := range s.experiments {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	out := make([]datatypes.Experiment, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, snapshotLocked(h.exp))
		h.mu.Unlock()
	}
	return out
}

// Strategies returns the experiment's strategy table snapshot.
func (s *Supervisor) Strategies(uuid string) ([]evolution.StrategyRecord, error) {
	h, err := s.handleFor(uuid)
	if err != nil {
		return nil, err
	}
	return h.table.Snapshot(), nil
}

// MemoryStats returns the experiment's memory counters.
func (s *Supervisor) MemoryStats(uuid string) (memory.Stats, error) {
	h, err := s.handleFor(uuid)
	if err != nil {
		return memory.Stats{}, err
	}
	return h.mem.Stats(), nil
}

// ExperienceLog returns a copy of the experiment's full experience
// log.
func (s *Supervisor) ExperienceLog(uuid string) ([]datatypes.Experience, error) {
	h, err := s.handleFor(uuid)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]datatypes.Experience, len(h.log))
	copy(out, h.log)
	return out, nil
}

// Emitter exposes the experiment's event stream for subscribers.
func (s *Supervisor) Emitter(uuid string) (*events.Emitter, error) {
	h, err := s.handleFor(uuid)
	if err != nil {
		return nil, err
	}
	return h.emitter, nil
}

// Wait blocks until the experiment's current worker exits. Mainly for
// the CLI and tests.
func (s *Supervisor) Wait(uuid string) error {
	h, err := s.handleFor(uuid)
	if err != nil {
		return err
	}
	h.mu.Lock()
	w := h.worker
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	<-w.done
	return nil
}

// Close stops every worker and waits for them to exit.
func (s *Supervisor) Close() {
	s.cancel()
	s.wg.Wait()
}

// handleFor resolves a uuid under the supervisor lock.
func (s *Supervisor) handleFor(uuid string) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.experiments[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}
	return h, nil
}

// snapshotLocked deep-copies an experiment for handing outside the
// lock. Caller holds the handle lock (or exclusively owns exp).
func snapshotLocked(exp *datatypes.Experiment) datatypes.Experiment {
	out := *exp
	if exp.Statistics != nil {
		stats := *exp.Statistics
		stats.StrategyDistribution = append([]datatypes.StrategyUsage(nil), exp.Statistics.StrategyDistribution...)
		stats.Windows = append([]datatypes.WindowStats(nil), exp.Statistics.Windows...)
		out.Statistics = &stats
	}
	return out
}
