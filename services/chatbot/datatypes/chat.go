// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and response types for the customer chat
// endpoints (REST and WebSocket). For FAQ management types, see faq.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message.
	// Bounds memory per request; checked in bytes, not runes.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxChannelNameLength bounds the channel tag ("web", "line",
	// "widget") on session creation.
	MaxChannelNameLength = 32
)

// Chat channels.
const (
	ChannelWeb    = "web"
	ChannelLine   = "line"
	ChannelWidget = "widget"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chatbot datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields.
// Byte length, not rune count, to bound actual memory usage.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.NewString()
}

// =============================================================================
// Chat Request
// =============================================================================

// ChatRequest is the body for POST /v1/chat.
//
// # Description
//
// ChatRequest carries one customer message. The tenant is resolved
// from authentication, not from the body. SessionID is optional: when
// empty a new session is created and its id returned, so the widget
// can hold a conversation across turns without any other state.
//
// # Fields
//
//   - RequestID: Optional client-supplied id (UUID v4) for tracing.
//     Generated server-side when empty.
//   - SessionID: Optional existing session to continue.
//   - Channel: Origin channel; defaults to "web".
//   - Message: Required. The customer's question, max 32KB.
type ChatRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
	Channel   string `json:"channel" validate:"omitempty,oneof=web line widget"`
	Message   string `json:"message" validate:"required,maxbytes"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Channel when the client
// omitted them.
func (r *ChatRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Channel == "" {
		r.Channel = ChannelWeb
	}
}

// =============================================================================
// Chat Response
// =============================================================================

// ChatResponse is the reply for POST /v1/chat and the WS chat channel.
//
// # Description
//
// ChatResponse wraps a PipelineResult with correlation ids. The end
// customer only ever sees Answer; the dashboard and the escalation
// worker consume the rest.
type ChatResponse struct {
	ResponseID       string       `json:"response_id"`
	RequestID        string       `json:"request_id"`
	SessionID        string       `json:"session_id"`
	Timestamp        int64        `json:"timestamp"`
	Answer           string       `json:"answer"`
	Confidence       float64      `json:"confidence"`
	ShouldEscalate   bool         `json:"should_escalate"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
	MatchedFAQs      []MatchedFAQ `json:"matched_faqs"`
	TokensUsed       int          `json:"tokens_used,omitempty"`
	ResponseTimeMs   int64        `json:"response_time_ms"`
}

// NewChatResponse builds a ChatResponse from a pipeline result.
//
// # Inputs
//
//   - requestID: Echo of the request id for correlation.
//   - sessionID: The session this turn belongs to.
//   - result: The pipeline result to flatten.
//
// # Outputs
//
//   - *ChatResponse: Response with a fresh ResponseID and timestamp.
func NewChatResponse(requestID, sessionID string, result *PipelineResult) *ChatResponse {
	return &ChatResponse{
		ResponseID:       generateUUID(),
		RequestID:        requestID,
		SessionID:        sessionID,
		Timestamp:        time.Now().UnixMilli(),
		Answer:           result.Answer,
		Confidence:       result.Confidence,
		ShouldEscalate:   result.ShouldEscalate,
		EscalationReason: result.EscalationReason,
		MatchedFAQs:      result.MatchedFAQs,
		TokensUsed:       result.Usage.Total(),
		ResponseTimeMs:   result.ElapsedMs,
	}
}

// =============================================================================
// Session Views
// =============================================================================

// SessionSummary is the list view of a stored chat session.
type SessionSummary struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	Channel          string     `json:"channel"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	IsEscalated      bool       `json:"is_escalated"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
	MessageCount     int        `json:"message_count"`
}

// StoredMessage is one persisted turn of a session history.
type StoredMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Confidence *float64  `json:"confidence,omitempty"`
	Tokens     int       `json:"tokens,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
