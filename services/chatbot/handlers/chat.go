// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin HTTP handlers for the chatbot
// service: customer chat (REST and WebSocket), FAQ management,
// session views, tenant administration, and analytics.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/conversation"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/observability"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// ResponseGenerator is the slice of the pipeline the chat handlers
// need.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, tenantID, question string, history []datatypes.Message) (*datatypes.PipelineResult, error)
}

// ChatHandler serves the customer chat endpoints.
//
// # Description
//
// One POST /v1/chat call runs the full response pipeline for the
// authenticated tenant: it resolves or creates the session, feeds the
// in-memory history window to the pipeline, persists both turns, and
// marks the session escalated when the pipeline says so. Persistence
// failures are logged but never block the answer.
type ChatHandler struct {
	generator ResponseGenerator
	store     *knowledge.Store
	sessions  *conversation.Store
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(generator ResponseGenerator, store *knowledge.Store, sessions *conversation.Store) *ChatHandler {
	return &ChatHandler{generator: generator, store: store, sessions: sessions}
}

// HandleChat handles POST /v1/chat.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		observability.RecordRequest("chat", "error")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		observability.RecordRequest("chat", "error")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		observability.RecordRequest("chat", "error")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, status := h.respond(c.Request.Context(), tenant, &req)
	if status != http.StatusOK {
		observability.RecordRequest("chat", "error")
		c.JSON(status, gin.H{"error": "failed to generate response"})
		return
	}
	observability.RecordRequest("chat", "success")
	c.JSON(http.StatusOK, resp)
}

// respond runs one chat turn. Shared between the REST handler and the
// WebSocket handler so both channels behave identically.
func (h *ChatHandler) respond(ctx context.Context, tenant *datatypes.Tenant, req *datatypes.ChatRequest) (*datatypes.ChatResponse, int) {
	sessionID := req.SessionID
	newSession := sessionID == ""
	if newSession {
		sessionID = uuid.NewString()
	}

	sess, inMemory := h.sessions.Lookup(sessionID)
	if inMemory {
		if sess.TenantID != tenant.ID {
			return nil, http.StatusForbidden
		}
		sess.Touch()
	} else {
		// The window is gone: a fresh id, an evicted session, or a
		// restart. For a resumed id the durable record decides who owns
		// it; the in-memory window alone is not an ownership proof.
		if !newSession {
			owner, err := h.store.SessionTenant(ctx, sessionID)
			switch {
			case errors.Is(err, knowledge.ErrNotFound):
				newSession = true
			case err != nil:
				slog.Error("Session ownership lookup failed", "session_id", sessionID, "error", err)
				return nil, http.StatusInternalServerError
			case owner != tenant.ID:
				return nil, http.StatusForbidden
			}
		}
		if newSession {
			if err := h.store.CreateSession(ctx, tenant.ID, sessionID, req.Channel); err != nil {
				slog.Error("Failed to persist session", "session_id", sessionID, "error", err)
			}
		}
		sess, _ = h.sessions.Get(sessionID, tenant.ID, req.Channel)
	}

	history := sess.History()
	result, err := h.generator.GenerateResponse(ctx, tenant.ID, req.Message, history)
	if err != nil {
		slog.Error("Pipeline failed", "tenant_id", tenant.ID, "error", err)
		return nil, http.StatusInternalServerError
	}

	sess.Append(datatypes.RoleUser, req.Message)
	sess.Append(datatypes.RoleAssistant, result.Answer)

	h.persistTurns(ctx, tenant.ID, sessionID, req.Message, result)

	return datatypes.NewChatResponse(req.RequestID, sessionID, result), http.StatusOK
}

// persistTurns writes both turns of the exchange and the escalation
// mark. Failures are logged; the customer already has the answer.
func (h *ChatHandler) persistTurns(ctx context.Context, tenantID, sessionID, question string, result *datatypes.PipelineResult) {
	if err := h.store.SaveMessage(ctx, &datatypes.StoredMessage{
		SessionID: sessionID,
		Role:      datatypes.RoleUser,
		Content:   question,
	}); err != nil {
		slog.Error("Failed to persist user turn", "session_id", sessionID, "error", err)
	}

	confidence := result.Confidence
	if err := h.store.SaveMessage(ctx, &datatypes.StoredMessage{
		SessionID:  sessionID,
		Role:       datatypes.RoleAssistant,
		Content:    result.Answer,
		Confidence: &confidence,
		Tokens:     result.Usage.Total(),
	}); err != nil {
		slog.Error("Failed to persist assistant turn", "session_id", sessionID, "error", err)
	}

	if result.ShouldEscalate {
		if err := h.store.MarkEscalated(ctx, tenantID, sessionID, result.EscalationReason); err != nil {
			slog.Error("Failed to mark session escalated", "session_id", sessionID, "error", err)
		}
	}
}
