// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks
// =============================================================================

type mockTenantDirectory struct {
	tenant *datatypes.Tenant
	err    error
}

func (m *mockTenantDirectory) GetTenant(_ context.Context, _ string) (*datatypes.Tenant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tenant, nil
}

type mockRetriever struct {
	matches []datatypes.MatchedFAQ
	err     error

	gotTenantID string
	gotQuery    string
}

func (m *mockRetriever) Retrieve(_ context.Context, tenantID, queryText string, _ int) ([]datatypes.MatchedFAQ, error) {
	m.gotTenantID = tenantID
	m.gotQuery = queryText
	return m.matches, m.err
}

type mockLLM struct {
	text  string
	usage *datatypes.TokenUsage
	err   error

	gotMessages []datatypes.Message
}

func (m *mockLLM) Chat(_ context.Context, messages []datatypes.Message, _ llm.GenerationParams) (*llm.ChatResult, error) {
	m.gotMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResult{Text: m.text, Usage: m.usage}, nil
}

func newTestPipeline(t *testing.T, tenants *mockTenantDirectory, retriever *mockRetriever, client *mockLLM) *Pipeline {
	t.Helper()
	p, err := NewPipeline(tenants, retriever, client, nil)
	require.NoError(t, err)
	return p
}

func petShopTenant() *datatypes.Tenant {
	return &datatypes.Tenant{
		ID:       "tenant-1",
		Name:     "わんわん堂",
		Industry: datatypes.IndustryPetShop,
		Status:   datatypes.TenantStatusActive,
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewPipelineRequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, &mockRetriever{}, &mockLLM{}, nil)
	assert.Error(t, err)
	_, err = NewPipeline(&mockTenantDirectory{}, nil, &mockLLM{}, nil)
	assert.Error(t, err)
	_, err = NewPipeline(&mockTenantDirectory{}, &mockRetriever{}, nil, nil)
	assert.Error(t, err)
}

func TestGenerateResponseRequiresInput(t *testing.T) {
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, &mockRetriever{}, &mockLLM{text: "ok"})

	_, err := p.GenerateResponse(context.Background(), "", "質問", nil)
	assert.Error(t, err)
	_, err = p.GenerateResponse(context.Background(), "tenant-1", "", nil)
	assert.Error(t, err)
}

// =============================================================================
// Happy Path
// =============================================================================

func TestGenerateResponseHappyPath(t *testing.T) {
	stored := "月曜から金曜の10時から19時まで営業しております。"
	retriever := &mockRetriever{matches: []datatypes.MatchedFAQ{
		{Question: "営業時間は?", Answer: stored},
	}}
	client := &mockLLM{
		text:  "はい、" + string([]rune(stored)[:20]) + "お待ちしております。",
		usage: &datatypes.TokenUsage{InputTokens: 120, OutputTokens: 40},
	}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, client)

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "営業時間を教えて", nil)
	require.NoError(t, err)

	assert.Equal(t, client.text, result.Answer)
	assert.False(t, result.FallbackUsed)
	assert.False(t, result.ShouldEscalate)
	assert.Empty(t, result.EscalationReason)
	// One match with content overlap: 0.2 + 0.4.
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 160, result.Usage.Total())
	assert.Len(t, result.MatchedFAQs, 1)
	assert.GreaterOrEqual(t, result.ElapsedMs, int64(0))

	// Retrieval ran under the caller's tenant.
	assert.Equal(t, "tenant-1", retriever.gotTenantID)
	assert.Equal(t, "営業時間を教えて", retriever.gotQuery)
}

func TestGenerateResponsePromptAssembly(t *testing.T) {
	retriever := &mockRetriever{matches: []datatypes.MatchedFAQ{
		{Question: "営業時間は?", Answer: "月〜金10:00-19:00です。"},
	}}
	client := &mockLLM{text: "回答"}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, client)

	history := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "こんにちは"},
		{Role: datatypes.RoleAssistant, Content: "いらっしゃいませ。"},
	}
	_, err := p.GenerateResponse(context.Background(), "tenant-1", "営業時間を教えて", history)
	require.NoError(t, err)

	require.Len(t, client.gotMessages, 4)
	system := client.gotMessages[0]
	assert.Equal(t, datatypes.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "わんわん堂")
	assert.Contains(t, system.Content, "ペットショップ")
	assert.Contains(t, system.Content, "[FAQ1]\nQ: 営業時間は?\nA: 月〜金10:00-19:00です。")
	assert.NotContains(t, system.Content, "{shopName}")
	assert.NotContains(t, system.Content, "{faqContext}")

	assert.Equal(t, "アシスタント: いらっしゃいませ。", client.gotMessages[2].Content)

	human := client.gotMessages[3]
	assert.Equal(t, datatypes.RoleUser, human.Role)
	assert.Contains(t, human.Content, "お客様のご質問: 営業時間を教えて")
}

func TestGenerateResponseHistoryWindow(t *testing.T) {
	client := &mockLLM{text: "回答"}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, &mockRetriever{}, client)

	var history []datatypes.Message
	for i := 0; i < 10; i++ {
		history = append(history, datatypes.Message{
			Role:    datatypes.RoleUser,
			Content: fmt.Sprintf("turn-%d", i),
		})
	}
	_, err := p.GenerateResponse(context.Background(), "tenant-1", "質問", history)
	require.NoError(t, err)

	// System + 6 history turns + human.
	require.Len(t, client.gotMessages, 8)
	assert.Equal(t, "turn-4", client.gotMessages[1].Content)
	assert.Equal(t, "turn-9", client.gotMessages[6].Content)
}

// =============================================================================
// Degraded Paths
// =============================================================================

func TestGenerateResponseUnknownTenantUsesDefaults(t *testing.T) {
	client := &mockLLM{text: "回答"}
	p := newTestPipeline(t, &mockTenantDirectory{err: errors.New("not found")}, &mockRetriever{}, client)

	result, err := p.GenerateResponse(context.Background(), "ghost-tenant", "質問です", nil)
	require.NoError(t, err)
	assert.Equal(t, "回答", result.Answer)

	system := client.gotMessages[0].Content
	assert.Contains(t, system, "お店")
	assert.NotContains(t, system, "ペットショップ")
}

func TestGenerateResponseRetrievalErrorMeansNoContext(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("store down")}
	client := &mockLLM{text: "回答"}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, client)

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "質問です", nil)
	require.NoError(t, err)

	assert.Empty(t, result.MatchedFAQs)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
	assert.True(t, result.ShouldEscalate)
	assert.Contains(t, client.gotMessages[0].Content, "FAQ情報なし")
}

func TestGenerateResponseEmptyRetrievalInsertsPlaceholderBlock(t *testing.T) {
	client := &mockLLM{text: "回答"}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, &mockRetriever{}, client)

	_, err := p.GenerateResponse(context.Background(), "tenant-1", "質問です", nil)
	require.NoError(t, err)
	assert.Contains(t, client.gotMessages[0].Content, "FAQ情報なし")
}

func TestGenerateResponseLLMFailureFallsBackToTopMatch(t *testing.T) {
	retriever := &mockRetriever{matches: []datatypes.MatchedFAQ{
		{Question: "営業時間は?", Answer: "月〜金10:00-19:00です。"},
		{Question: "定休日は?", Answer: "水曜日です。"},
	}}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, &mockLLM{err: errors.New("llm down")})

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "営業時間を教えて", nil)
	require.NoError(t, err)

	assert.Equal(t, "月〜金10:00-19:00です。", result.Answer)
	assert.True(t, result.FallbackUsed)
	assert.Nil(t, result.Usage)
}

func TestGenerateResponseLLMFailureWithoutMatches(t *testing.T) {
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, &mockRetriever{}, &mockLLM{err: errors.New("llm down")})

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "質問です", nil)
	require.NoError(t, err)

	assert.Equal(t, systemUnavailableMessage, result.Answer)
	assert.True(t, result.FallbackUsed)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
	assert.True(t, result.ShouldEscalate)
}

// =============================================================================
// End-to-End Scenarios
// =============================================================================

func TestScenarioFallbackAnswerFromStoredFAQ(t *testing.T) {
	// Pet shop with exactly one stored FAQ; the customer asks for the
	// opening hours and generation fails. The reply is the stored
	// answer verbatim, scoring 0.6 (one match, and the fallback text
	// trivially contains its own leading runes), which sits exactly at
	// the threshold and therefore does not escalate.
	retriever := &mockRetriever{matches: []datatypes.MatchedFAQ{
		{Question: "営業時間は?", Answer: "月〜金10:00-19:00です。"},
	}}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, &mockLLM{err: errors.New("timeout")})

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "営業時間を教えて", nil)
	require.NoError(t, err)

	assert.Equal(t, "月〜金10:00-19:00です。", result.Answer)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.False(t, result.ShouldEscalate)
	assert.True(t, result.FallbackUsed)
}

func TestScenarioDeathKeywordAlwaysEscalates(t *testing.T) {
	stored := "すぐに動物病院を受診してください。詳しくはスタッフまで。"
	retriever := &mockRetriever{matches: []datatypes.MatchedFAQ{
		{Question: "具合が悪いときは", Answer: stored},
		{Question: "夜間対応は", Answer: "提携の夜間病院をご案内します。"},
		{Question: "連絡先は", Answer: "お電話にてご連絡ください。"},
	}}
	client := &mockLLM{text: "ご心配ですね。" + string([]rune(stored)[:20])}
	p := newTestPipeline(t, &mockTenantDirectory{tenant: petShopTenant()}, retriever, client)

	result, err := p.GenerateResponse(context.Background(), "tenant-1", "飼い犬が死にそうなんです", nil)
	require.NoError(t, err)

	// Three matches with overlap score a full 1.0, and the keyword
	// still forces escalation.
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.True(t, result.ShouldEscalate)
	assert.True(t, strings.Contains(result.EscalationReason, `"死"`))
	assert.False(t, result.FallbackUsed)
}
