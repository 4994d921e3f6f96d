// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP JSON control surface over the
// experiment supervisor.
package handlers

import (
	"errors"
	"net/http"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/gin-gonic/gin"
)

// StartExperimentRequest is the POST /v1/experiments payload.
type StartExperimentRequest struct {
	Name   string                     `json:"name"`
	Config datatypes.ExperimentConfig `json:"config"`
}

// apiError writes the structured {code, message} error body.
func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

// writeDomainError maps supervisor errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, experiment.ErrNotFound):
		apiError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, datatypes.ErrInvalidTransition):
		apiError(c, http.StatusConflict, "invalid_state", err.Error())
	default:
		apiError(c, http.StatusBadRequest, "invalid_config", err.Error())
	}
}

// StartExperiment creates and begins an experiment.
func StartExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartExperimentRequest
		if err := c.BindJSON(&req); err != nil {
			apiError(c, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		if req.Name == "" {
			req.Name = "experiment"
		}

		snap, err := sup.Start(req.Name, req.Config)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"uuid": snap.UUID, "status": snap.Status})
	}
}

// transitionHandler wraps one state-machine operation.
func transitionHandler(apply func(uuid string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		if err := apply(uuid); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// PauseExperiment suspends a running experiment.
func PauseExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return transitionHandler(sup.Pause)
}

// ResumeExperiment continues a paused experiment.
func ResumeExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return transitionHandler(sup.Resume)
}

// StopExperiment ends a running or paused experiment.
func StopExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return transitionHandler(sup.Stop)
}

// ResetExperiment returns a finished experiment to created.
func ResetExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return transitionHandler(sup.Reset)
}

// GetExperiment returns the experiment's status summary.
func GetExperiment(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := sup.Get(c.Param("uuid"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"uuid":            snap.UUID,
			"name":            snap.Name,
			"status":          snap.Status,
			"current_episode": snap.CurrentEpisode,
			"total_episodes":  snap.TotalEpisodes,
			"statistics":      snap.Statistics,
			"error":           snap.Error,
		})
	}
}

// GetExperimentMetrics returns the full running statistics, strategy
// table, and memory counters.
func GetExperimentMetrics(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		snap, err := sup.Get(uuid)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		strategies, err := sup.Strategies(uuid)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		memStats, err := sup.MemoryStats(uuid)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"uuid":       snap.UUID,
			"status":     snap.Status,
			"statistics": snap.Statistics,
			"strategies": strategies,
			"memory":     memStats,
			"config":     snap.Config,
		})
	}
}

// ListExperiments returns a summary of every experiment.
func ListExperiments(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := sup.List()
		summaries := make([]gin.H, 0, len(all))
		for _, e := range all {
			summaries = append(summaries, gin.H{
				"uuid":            e.UUID,
				"name":            e.Name,
				"status":          e.Status,
				"current_episode": e.CurrentEpisode,
				"total_episodes":  e.TotalEpisodes,
			})
		}
		c.JSON(http.StatusOK, gin.H{"experiments": summaries})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
