// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianDrift/services/driftlab/defense"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires the control API onto the router.
func SetupRoutes(router *gin.Engine, sup *experiment.Supervisor, sentry *defense.Sentry) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		experiments := v1.Group("/experiments")
		{
			experiments.POST("", handlers.StartExperiment(sup))
			experiments.GET("", handlers.ListExperiments(sup))
			experiments.GET("/:uuid", handlers.GetExperiment(sup))
			experiments.GET("/:uuid/metrics", handlers.GetExperimentMetrics(sup))
			experiments.GET("/:uuid/events", handlers.ExperimentEvents(sup))
			experiments.POST("/:uuid/pause", handlers.PauseExperiment(sup))
			experiments.POST("/:uuid/resume", handlers.ResumeExperiment(sup))
			experiments.POST("/:uuid/stop", handlers.StopExperiment(sup))
			experiments.POST("/:uuid/reset", handlers.ResetExperiment(sup))
		}

		defenseGroup := v1.Group("/defense")
		{
			defenseGroup.GET("/statistics", handlers.DefenseStatistics(sentry))
			defenseGroup.POST("/statistics/reset", handlers.ResetDefenseStatistics(sentry))
		}

		export := v1.Group("/export")
		{
			export.GET("/experiments/:uuid/csv", handlers.ExportCSV(sup))
			export.GET("/experiments/:uuid/json", handlers.ExportJSON(sup))
		}
	}
}
