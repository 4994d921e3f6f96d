// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/defense"
	"github.com/gin-gonic/gin"
)

// DefenseStatistics returns the process-wide sentry counters.
func DefenseStatistics(sentry *defense.Sentry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sentry == nil {
			apiError(c, http.StatusNotFound, "defense_disabled", "no safety sentry is configured")
			return
		}
		c.JSON(http.StatusOK, sentry.Statistics())
	}
}

// ResetDefenseStatistics zeroes the sentry counters.
func ResetDefenseStatistics(sentry *defense.Sentry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sentry == nil {
			apiError(c, http.StatusNotFound, "defense_disabled", "no safety sentry is configured")
			return
		}
		sentry.ResetStatistics()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
