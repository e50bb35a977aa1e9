// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the session views the dashboard reads.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/conversation"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// SessionHandler serves stored session listings and transcripts.
type SessionHandler struct {
	store    *knowledge.Store
	sessions *conversation.Store
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store *knowledge.Store, sessions *conversation.Store) *SessionHandler {
	return &SessionHandler{store: store, sessions: sessions}
}

// HandleList handles GET /v1/sessions.
func (h *SessionHandler) HandleList(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.store.ListSessions(c.Request.Context(), tenant.ID, queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []datatypes.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}

// HandleMessages handles GET /v1/sessions/:id/messages.
func (h *SessionHandler) HandleMessages(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	messages, err := h.store.GetSessionMessages(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if messages == nil {
		messages = []datatypes.StoredMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"items": messages})
}

// HandleEnd handles POST /v1/sessions/:id/end. Ends the stored session
// and drops its in-memory window.
func (h *SessionHandler) HandleEnd(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("id")
	if err := h.store.EndSession(c.Request.Context(), tenant.ID, sessionID); err != nil {
		respondStoreError(c, err)
		return
	}
	h.sessions.Delete(sessionID)
	c.Status(http.StatusNoContent)
}
