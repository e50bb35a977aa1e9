// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the AI response pipeline: retrieval,
// prompt selection, context construction, generation, confidence
// scoring, and escalation detection.
//
// # Description
//
// GenerateResponse is the single entry point. One call runs the whole
// stage chain for one question and always produces an answer: LLM
// failures degrade to a knowledge-based fallback rather than an error.
// An error return is reserved for unusable input.
//
// # Thread Safety
//
// A Pipeline is safe for concurrent use. It holds no per-request
// state; everything flows through arguments and return values.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/observability"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
	"github.com/NekoyaJolly/AI-Chatbot/services/llm"
)

// tracer for pipeline spans.
var tracer = otel.Tracer("chatbot.pipeline")

// Fallback values when the tenant record cannot be resolved. The
// pipeline still answers; it just loses industry-specific prompting.
const (
	fallbackShopName = "お店"
)

// systemUnavailableMessage is the answer of last resort: generation
// failed and retrieval produced nothing to quote.
const systemUnavailableMessage = "ただいまシステムに問題が発生しています。スタッフにお問い合わせください。"

// Pipeline wires the stage chain together.
type Pipeline struct {
	tenants   knowledge.TenantDirectory
	retriever knowledge.Retriever
	client    llm.LLMClient
	detector  *Detector
	params    llm.GenerationParams
}

// NewPipeline constructs a Pipeline. tenants, retriever, and client
// are required; detector defaults to the built-in escalation config
// when nil.
func NewPipeline(tenants knowledge.TenantDirectory, retriever knowledge.Retriever, client llm.LLMClient, detector *Detector) (*Pipeline, error) {
	if tenants == nil {
		return nil, errors.New("pipeline: tenant directory is required")
	}
	if retriever == nil {
		return nil, errors.New("pipeline: retriever is required")
	}
	if client == nil {
		return nil, errors.New("pipeline: LLM client is required")
	}
	if detector == nil {
		detector = NewDetector(DefaultEscalationConfig())
	}
	return &Pipeline{
		tenants:   tenants,
		retriever: retriever,
		client:    client,
		detector:  detector,
	}, nil
}

// SetGenerationParams overrides the sampling parameters passed to the
// LLM on every call. Zero-valued fields keep the client defaults.
func (p *Pipeline) SetGenerationParams(params llm.GenerationParams) {
	p.params = params
}

// GenerateResponse runs the full pipeline for one question.
//
// # Description
//
// Stages, in order:
//
//  1. Resolve the tenant for industry and shop name. A missing tenant
//     degrades to the general-industry defaults.
//  2. Retrieve up to three FAQs scoped to the tenant. Retrieval errors
//     degrade to zero matches.
//  3. Select the industry prompt pair and expand placeholders.
//  4. Assemble messages: system prompt, trailing history window,
//     human turn.
//  5. Call the LLM once. On failure, answer from the top matched FAQ,
//     or the system-unavailable message when there were no matches.
//  6. Score confidence and decide escalation.
//
// # Inputs
//
//   - ctx: Request context; cancellation aborts the LLM call.
//   - tenantID: Owning tenant. Required.
//   - question: The end user's question. Required.
//   - history: Prior turns of this session, oldest first. May be nil.
//
// # Outputs
//
//   - *datatypes.PipelineResult: Always non-nil on nil error.
//   - error: Only for missing tenantID or question.
func (p *Pipeline) GenerateResponse(ctx context.Context, tenantID, question string, history []datatypes.Message) (*datatypes.PipelineResult, error) {
	if tenantID == "" {
		return nil, errors.New("pipeline: tenantID is required")
	}
	if question == "" {
		return nil, errors.New("pipeline: question is required")
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.generate_response",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("history.turns", len(history)),
		))
	defer span.End()

	industry, shopName := p.resolveTenant(ctx, tenantID)
	matches := p.retrieve(ctx, tenantID, question)

	faqContext := BuildFAQContext(matches)
	if faqContext == "" {
		faqContext = emptyKnowledgeBlock
	}

	tpl := SelectPrompt(industry)
	systemContent := expandTemplate(tpl.System, map[string]string{
		"shopName":   shopName,
		"faqContext": faqContext,
	})
	humanContent := expandTemplate(tpl.Human, map[string]string{
		"question": question,
	})
	messages := BuildMessages(systemContent, history, humanContent)

	answer, usage, fallbackUsed := p.generate(ctx, tenantID, messages, matches)

	confidence := CalculateConfidence(matches, answer)
	decision := p.detector.Decide(question, answer, confidence)

	elapsed := time.Since(start)
	observability.RecordPipeline(elapsed.Seconds(), confidence, fallbackUsed)
	if usage != nil {
		observability.RecordTokens(usage.InputTokens, usage.OutputTokens)
	}
	if decision.Escalate {
		observability.RecordEscalation(tenantID, decision.Trigger)
	}

	span.SetAttributes(
		attribute.Int("retrieval.matches", len(matches)),
		attribute.Float64("confidence", confidence),
		attribute.Bool("escalate", decision.Escalate),
		attribute.Bool("fallback", fallbackUsed),
	)
	slog.Info("Generated response",
		"tenant_id", tenantID,
		"elapsed_ms", elapsed.Milliseconds(),
		"confidence", fmt.Sprintf("%.2f", confidence),
		"escalate", decision.Escalate,
		"fallback", fallbackUsed)

	return &datatypes.PipelineResult{
		Answer:           answer,
		Confidence:       confidence,
		ShouldEscalate:   decision.Escalate,
		EscalationReason: decision.Reason,
		MatchedFAQs:      matches,
		Usage:            usage,
		FallbackUsed:     fallbackUsed,
		ElapsedMs:        elapsed.Milliseconds(),
	}, nil
}

// resolveTenant looks up the tenant's industry and display name,
// degrading to general-industry defaults when the record is missing
// or the lookup fails.
func (p *Pipeline) resolveTenant(ctx context.Context, tenantID string) (datatypes.Industry, string) {
	ctx, span := tracer.Start(ctx, "pipeline.resolve_tenant")
	defer span.End()

	tenant, err := p.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, knowledge.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
		slog.Warn("Tenant lookup failed, using defaults", "tenant_id", tenantID, "error", err)
		return datatypes.IndustryGeneral, fallbackShopName
	}
	name := tenant.Name
	if name == "" {
		name = fallbackShopName
	}
	return tenant.Industry, name
}

// retrieve fetches the tenant's matching FAQs, degrading to zero
// matches on error so generation can still proceed.
func (p *Pipeline) retrieve(ctx context.Context, tenantID, question string) []datatypes.MatchedFAQ {
	ctx, span := tracer.Start(ctx, "pipeline.retrieve")
	defer span.End()

	matches, err := p.retriever.Retrieve(ctx, tenantID, question, knowledge.DefaultRetrievalLimit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("FAQ retrieval failed, continuing without context", "tenant_id", tenantID, "error", err)
		return nil
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches
}

// generate calls the LLM once and falls back to knowledge content on
// failure. Returns the answer, token usage when available, and whether
// the fallback path was taken.
func (p *Pipeline) generate(ctx context.Context, tenantID string, messages []datatypes.Message, matches []datatypes.MatchedFAQ) (string, *datatypes.TokenUsage, bool) {
	ctx, span := tracer.Start(ctx, "pipeline.generate",
		trace.WithAttributes(attribute.Int("messages", len(messages))))
	defer span.End()

	result, err := p.client.Chat(ctx, messages, p.params)
	if err == nil && result.Text != "" {
		return result.Text, result.Usage, false
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Error("LLM call failed, using fallback answer", "tenant_id", tenantID, "error", err)
	} else {
		slog.Warn("LLM returned empty answer, using fallback", "tenant_id", tenantID)
	}
	observability.RecordFallback(tenantID)

	if len(matches) > 0 {
		return matches[0].Answer, nil, true
	}
	return systemUnavailableMessage, nil, true
}
