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
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/evolution"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/events"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/memory"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// worker runs one experiment's episode loop on its own goroutine. It
// owns the episode state exclusively; the supervisor talks to it by
// flipping the experiment status under the handle lock and nudging
// the wake channel so sleeps cut short.
//
// Suspension points are the pause check at the top of each episode,
// the gateway call, and the inter-episode tick. A stop lets the
// current step finish; the loop exits at the next check.
type worker struct {
	deps    Deps
	handle  *handle
	flagger ruleReviewer

	ctx     context.Context
	wake    chan struct{}
	done    chan struct{}
	rng     *rand.Rand
	idgen   func() string
	limiter *rate.Limiter
}

// ruleReviewer is the rule-only detection the runner uses for
// violation flagging when defense enforcement is off.
type ruleReviewer interface {
	Review(ctx context.Context, issue datatypes.Issue, resp datatypes.Response) datatypes.Review
}

func newWorker(ctx context.Context, deps Deps, h *handle, flagger ruleReviewer) *worker {
	seed := h.exp.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	w := &worker{
		deps:    deps,
		handle:  h,
		flagger: flagger,
		ctx:     ctx,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		rng:     rng,
		idgen:   newIDGen(rng),
	}
	if deps.EpisodeTick > 0 {
		w.limiter = rate.NewLimiter(rate.Every(deps.EpisodeTick), 1)
	}
	return w
}

// newIDGen derives UUIDv4-shaped ids from the experiment's random
// source so a seeded run replays identically.
func newIDGen(rng *rand.Rand) func() string {
	return func() string {
		var b [16]byte
		for i := range b {
			b[i] = byte(rng.Intn(256))
		}
		b[6] = (b[6] & 0x0f) | 0x40
		b[8] = (b[8] & 0x3f) | 0x80
		u, err := uuid.FromBytes(b[:])
		if err != nil {
			return uuid.NewString()
		}
		return u.String()
	}
}

func (w *worker) now() time.Time {
	return w.deps.Clock()
}

func (w *worker) nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run is the experiment loop. It exits when the experiment leaves the
// running/paused states or the supervisor shuts down.
func (w *worker) run() {
	defer close(w.done)

	h := w.handle
	cfg := h.exp.Config

	for {
		h.mu.Lock()
		status := h.exp.Status
		episode := h.exp.CurrentEpisode
		total := h.exp.TotalEpisodes
		h.mu.Unlock()

		switch status {
		case datatypes.StatusPaused:
			select {
			case <-w.wake:
			case <-time.After(w.deps.PauseInterval):
			case <-w.ctx.Done():
				return
			}
			continue
		case datatypes.StatusRunning:
			// fall through to the episode
		default:
			w.deps.Metrics.ExperimentStopped()
			return
		}

		if episode >= total {
			w.complete()
			return
		}

		start := w.now()
		exp, err := w.runEpisode(episode + 1, cfg)
		if err != nil {
			w.fail(episode+1, err)
			return
		}

		h.mu.Lock()
		h.exp.Statistics.Record(exp)
		h.exp.CurrentEpisode = episode + 1
		h.log = append(h.log, exp)
		h.mu.Unlock()

		if serr := w.deps.Store.AppendExperience(exp); serr != nil {
			slog.Warn("experience snapshot failed", "experiment", h.exp.UUID, "error", serr)
		}

		w.deps.Metrics.ObserveEpisode(cfg.Scenario, string(exp.Strategy),
			w.now().Sub(start).Seconds(), exp.Reward, exp.IsViolation, exp.Blocked)

		h.emitter.Emit(events.TypeEpisodeCompleted, events.EpisodeCompletedData{
			Episode:       exp.Episode,
			TotalEpisodes: total,
			Reward:        exp.Reward,
			Strategy:      string(exp.Strategy),
			IsViolation:   exp.IsViolation,
			Blocked:       exp.Blocked,
		})

		if w.limiter != nil {
			if lerr := w.limiter.Wait(w.ctx); lerr != nil {
				return
			}
		}
	}
}

// runEpisode executes steps 2..10 of the episode procedure and
// returns the assembled experience. Panics inside a step surface as
// errors so the loop can fail the experiment instead of crashing the
// process.
func (w *worker) runEpisode(episode int, cfg datatypes.ExperimentConfig) (exp datatypes.Experience, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("episode %d panicked: %v", episode, r)
		}
	}()

	h := w.handle
	issue := generateIssue(w.rng, w.idgen, episode, w.now())

	var memories []*memory.Entry
	if cfg.EnableMemory {
		var merr error
		memories, merr = h.mem.RetrieveSimilar(w.ctx, issue.Content, cfg.TopK)
		if merr != nil {
			slog.Warn("memory retrieval degraded to empty", "experiment", h.exp.UUID, "error", merr)
			memories = nil
		}
	}

	strategy := h.table.Select(w.rng)
	prompt := buildPrompt(issue, memories, strategy)

	callStart := w.now()
	content, cerr := w.deps.Agent.Complete(w.ctx, agentSystemPrompt, prompt, llm.GenerationParams{})
	responseTime := w.now().Sub(callStart).Seconds()

	fallback := false
	if cerr != nil {
		if w.ctx.Err() != nil {
			return exp, w.ctx.Err()
		}
		slog.Warn("gateway fallback", "experiment", h.exp.UUID, "episode", episode, "error", cerr)
		content = llm.FallbackResponse
		strategy = datatypes.StrategyPolite
		fallback = true
		w.deps.Metrics.ObserveGatewayFallback()
	}

	resp := datatypes.Response{
		ID:                  w.idgen(),
		IssueID:             issue.ID,
		Content:             content,
		Strategy:            strategy,
		TicketClosed:        !fallback && parseTicketClosed(content, strategy),
		ResponseTimeSeconds: responseTime,
		Metadata:            map[string]string{},
		CreatedAt:           w.now(),
	}
	if fallback {
		resp.Metadata["gateway_fallback"] = "true"
	}

	isViolation := false
	blocked := false
	var tags []datatypes.ViolationType

	if cfg.EnableDefense && w.deps.Sentry != nil {
		decision := w.deps.Sentry.ReviewDecision(w.ctx, issue, resp)
		w.deps.Metrics.ObserveDefenseAction(string(decision.Action))
		h.emitter.Emit(events.TypeDefenseAction, events.DefenseActionData{
			Episode: episode,
			Action:  string(decision.Action),
			Reason:  decision.Reason,
		})

		switch decision.Action {
		case datatypes.ActionRewrite:
			original := resp
			resp = datatypes.Response{
				ID:                  w.idgen(),
				IssueID:             issue.ID,
				Content:             decision.Rewrite,
				Strategy:            strategy,
				ResponseTimeSeconds: responseTime,
				Metadata:            original.Metadata,
				RewrittenFrom:       original.ID,
				ReviewID:            decision.Review.ID,
				CreatedAt:           w.now(),
			}
			isViolation = true
			tags = decision.Review.Violations
		case datatypes.ActionBlock, datatypes.ActionEscalate:
			blocked = true
			isViolation = true
			tags = decision.Review.Violations
		case datatypes.ActionWarn:
			isViolation = true
			tags = decision.Review.Violations
		}
	} else {
		review := w.flagger.Review(w.ctx, issue, resp)
		if !review.Approved {
			isViolation = true
			tags = review.Violations
		}
	}

	if isViolation {
		h.emitter.Emit(events.TypeViolationDetected, events.ViolationDetectedData{
			Episode:    episode,
			RiskLevel:  string(datatypes.AggregateRisk(tags)),
			Violations: violationStrings(tags),
		})
	}

	var outcome *datatypes.Outcome
	if !blocked && !fallback {
		o := evolution.SimulateOutcome(w.rng, strategy, isViolation)
		outcome = &o
	}

	var comp datatypes.RewardComponents
	if blocked {
		// A blocked decision never executes: no closure or outcome,
		// only the penalty.
		comp = datatypes.RewardComponents{Violation: -cfg.RewardBonuses.ViolationPenalty}
	} else {
		comp = h.calc.Components(resp, outcome, isViolation)
	}
	total := h.calc.Total(comp)

	exp = datatypes.Experience{
		ID:            w.idgen(),
		ExperimentID:  h.exp.UUID,
		Episode:       episode,
		Issue:         issue,
		Response:      resp,
		Outcome:       outcome,
		Components:    comp,
		Reward:        total,
		Strategy:      strategy,
		IsViolation:   isViolation,
		ViolationTags: tags,
		Blocked:       blocked,
		CreatedAt:     w.now(),
	}

	if cfg.EnableEvolution {
		h.table.Update(exp)
	}
	if cfg.EnableMemory {
		if _, aerr := h.mem.Admit(w.ctx, exp); aerr != nil {
			slog.Warn("memory admission skipped", "experiment", h.exp.UUID, "episode", episode, "error", aerr)
		}
	}

	return exp, nil
}

func (w *worker) complete() {
	h := w.handle
	h.mu.Lock()
	_ = h.exp.Complete(w.now())
	snapshot := snapshotLocked(h.exp)
	h.mu.Unlock()

	w.deps.Metrics.ExperimentStopped()
	if serr := w.deps.Store.PutSnapshot(snapshot); serr != nil {
		slog.Warn("experiment snapshot failed", "experiment", snapshot.UUID, "error", serr)
	}

	h.emitter.Emit(events.TypeStatusChanged, events.StatusChangedData{
		From: string(datatypes.StatusRunning), To: string(datatypes.StatusCompleted),
	})
	h.emitter.Emit(events.TypeExperimentCompleted, snapshot.Statistics)
	slog.Info("experiment completed",
		"experiment", snapshot.UUID,
		"episodes", snapshot.CurrentEpisode,
		"violations", snapshot.Statistics.ViolationCount,
		"total_reward", snapshot.Statistics.TotalReward)
}

func (w *worker) fail(episode int, err error) {
	h := w.handle
	h.mu.Lock()
	_ = h.exp.Fail(w.now(), err.Error())
	h.mu.Unlock()

	w.deps.Metrics.ExperimentStopped()
	h.emitter.Emit(events.TypeError, events.ErrorData{Episode: episode, Message: err.Error()})
	h.emitter.Emit(events.TypeStatusChanged, events.StatusChangedData{
		From: string(datatypes.StatusRunning), To: string(datatypes.StatusFailed),
	})
	slog.Error("experiment failed", "experiment", h.exp.UUID, "episode", episode, "error", err)
}

func violationStrings(tags []datatypes.ViolationType) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
