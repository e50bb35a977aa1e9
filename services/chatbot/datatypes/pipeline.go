// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the types flowing through the response pipeline:
// conversation messages, matched knowledge records, and the structured
// pipeline result returned to transport handlers.
package datatypes

// =============================================================================
// Conversation Messages
// =============================================================================

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn.
//
// # Description
//
// Message is the unit of conversation history and of the instruction
// sequence sent to the LLM backends. Role is one of "user",
// "assistant", or "system".
//
// # Validation
//
//   - Role: required, one of user/assistant/system
//   - Content: required, max 32KB (SEC-003 style bound carried over
//     from the direct-chat surface)
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// =============================================================================
// Matched Knowledge
// =============================================================================

// MatchedFAQ is a knowledge record returned by retrieval.
//
// # Description
//
// MatchedFAQ carries the question/answer pair the retriever matched
// for the current turn. Similarity is only populated by backends that
// compute one (Weaviate BM25 score); the keyword store leaves it nil,
// and the scorer never depends on it.
type MatchedFAQ struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// =============================================================================
// Pipeline Result
// =============================================================================

// TokenUsage contains token consumption statistics.
//
// # Fields
//
//   - InputTokens: Number of tokens in the prompt/messages
//   - OutputTokens: Number of tokens in the response
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined token count.
func (u *TokenUsage) Total() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens
}

// PipelineResult is the output of one pipeline invocation.
//
// # Description
//
// PipelineResult carries everything the transport layer needs to
// serialize a reply, persist the turn, and trigger escalation side
// effects. One instance is produced per invocation and is immutable
// once constructed; the pipeline retains no reference to it.
//
// There is no failure variant: degraded conditions (no knowledge,
// model unavailable, unknown tenant) still produce a result, with the
// confidence score and escalation flag reflecting the degradation.
//
// # Fields
//
//   - Answer: The reply text shown to the end customer. On generation
//     failure this is the fallback answer, never an error message.
//   - Confidence: Heuristic reliability estimate in [0, 1].
//   - ShouldEscalate: Whether a human agent must take over.
//   - EscalationReason: Populated only when ShouldEscalate is true.
//   - MatchedFAQs: Knowledge records used as context, in retrieval order.
//   - Usage: Token usage estimate. Nil when the backend reports none
//     or the fallback path was taken.
//   - FallbackUsed: True when the answer came from the fallback path
//     rather than the model.
//   - ElapsedMs: Wall-clock time from pipeline entry to result,
//     observational only.
type PipelineResult struct {
	Answer           string       `json:"answer"`
	Confidence       float64      `json:"confidence"`
	ShouldEscalate   bool         `json:"should_escalate"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
	MatchedFAQs      []MatchedFAQ `json:"matched_faqs"`
	Usage            *TokenUsage  `json:"usage,omitempty"`
	FallbackUsed     bool         `json:"fallback_used,omitempty"`
	ElapsedMs        int64        `json:"elapsed_ms"`
}
