// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var geminiTracer = otel.Tracer("chatbot.llm.gemini")

// GeminiClient is the default production backend: Google Gemini via
// the langchaingo googleai provider.
//
// # Description
//
// GeminiClient adapts Gemini chat completion to the LLMClient
// interface. The defaults (gemini-2.0-flash, temperature 0.3, 512
// output tokens) match the live-chat latency budget; callers can
// override any of them per request via GenerationParams.
type GeminiClient struct {
	model     *googleai.GoogleAI
	modelName string
}

// NewGeminiClient creates a Gemini-backed LLM client.
//
// # Description
//
// Reads GEMINI_API_KEY from the environment, falling back to the
// container secret at /run/secrets/gemini_api_key. GEMINI_MODEL
// selects the model, defaulting to gemini-2.0-flash.
//
// # Outputs
//
//   - *GeminiClient: Ready-to-use client.
//   - error: Non-nil when no API key can be found or the provider
//     fails to initialize.
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/gemini_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Gemini API key from container secrets")
		} else {
			slog.Error("GEMINI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	}

	modelName := os.Getenv("GEMINI_MODEL")
	if modelName == "" {
		modelName = "gemini-2.0-flash"
		slog.Warn("GEMINI_MODEL not set, defaulting to gemini-2.0-flash")
	}

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
	}

	slog.Info("Initializing Gemini client", "model", modelName)
	return &GeminiClient{model: model, modelName: modelName}, nil
}

// Chat implements the LLMClient interface.
func (g *GeminiClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (*ChatResult, error) {
	ctx, span := geminiTracer.Start(ctx, "GeminiClient.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.modelName),
		attribute.Int("llm.message_count", len(messages)),
	)

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	opts := make([]llms.CallOption, 0, 4)
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	} else {
		opts = append(opts, llms.WithTemperature(0.3))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	} else {
		opts = append(opts, llms.WithMaxTokens(512))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	resp, err := g.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		slog.Error("Gemini API call failed", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Gemini returned no choices")
		return nil, fmt.Errorf("gemini returned no choices")
	}

	choice := resp.Choices[0]
	result := &ChatResult{Text: choice.Content}
	if usage := usageFromGenerationInfo(choice.GenerationInfo); usage != nil {
		result.Usage = usage
		span.SetAttributes(attribute.Int("llm.total_tokens", usage.Total()))
	}
	return result, nil
}

// chatMessageType maps a conversation role onto the langchaingo
// message type constants.
func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case datatypes.RoleSystem:
		return llms.ChatMessageTypeSystem
	case datatypes.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// usageFromGenerationInfo extracts token counts from the provider's
// generation metadata. Providers differ in which keys they populate,
// so missing or oddly typed values yield nil rather than zeros.
func usageFromGenerationInfo(info map[string]any) *datatypes.TokenUsage {
	if info == nil {
		return nil
	}
	in, okIn := tokenCount(info["input_tokens"])
	out, okOut := tokenCount(info["output_tokens"])
	if !okIn && !okOut {
		return nil
	}
	return &datatypes.TokenUsage{InputTokens: in, OutputTokens: out}
}

func tokenCount(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
