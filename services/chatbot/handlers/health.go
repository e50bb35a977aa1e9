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

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// HealthHandler reports process and store health.
type HealthHandler struct {
	store   *knowledge.Store
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *knowledge.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// HandleHealth handles GET /health. Degrades to 503 when the store is
// unreachable.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "version": h.version})
}
