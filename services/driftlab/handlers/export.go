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
	"fmt"
	"net/http"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/gin-gonic/gin"
)

// ExportCSV streams the experiment snapshot as a BOM-prefixed CSV
// attachment.
func ExportCSV(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		data, err := sup.ExportCSV(uuid)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename="experiment_%s.csv"`, uuid))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	}
}

// ExportJSON returns the structured snapshot; ?experiences=true
// includes the full experience log.
func ExportJSON(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		includeExperiences := c.Query("experiences") == "true"
		data, err := sup.ExportJSON(uuid, includeExperiences)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}
