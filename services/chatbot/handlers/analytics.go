// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the dashboard analytics endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// AnalyticsHandler serves aggregate numbers for the tenant dashboard.
type AnalyticsHandler struct {
	store *knowledge.Store
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(store *knowledge.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// HandleSummary handles GET /v1/analytics/summary.
func (h *AnalyticsHandler) HandleSummary(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	summary, err := h.store.Analytics(c.Request.Context(), tenant.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
