// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "chatbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "ペットショップわんわん", datatypes.IndustryPetShop)
	require.NoError(t, err)
	require.NotEmpty(t, tenant.ID)
	require.NotEmpty(t, tenant.APIKey)

	got, err := store.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "ペットショップわんわん", got.Name)
	assert.Equal(t, datatypes.IndustryPetShop, got.Industry)
	assert.Equal(t, datatypes.TenantStatusActive, got.Status)

	byKey, err := store.GetTenantByAPIKey(ctx, tenant.APIKey)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, byKey.ID)
}

func TestGetTenantNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTenant(context.Background(), "no-such-tenant")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFAQLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "サロン", datatypes.IndustryBeautySalon)
	require.NoError(t, err)

	created, err := store.CreateFAQ(ctx, tenant.ID, &datatypes.CreateFAQRequest{
		Question: "営業時間を教えてください",
		Answer:   "営業時間は10時から19時です。",
		Category: "営業案内",
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.ViewCount)

	newAnswer := "営業時間は9時から18時です。"
	updated, err := store.UpdateFAQ(ctx, tenant.ID, created.ID, &datatypes.UpdateFAQRequest{
		Answer: &newAnswer,
	})
	require.NoError(t, err)
	assert.Equal(t, newAnswer, updated.Answer)
	assert.Equal(t, created.Question, updated.Question)

	require.NoError(t, store.IncrementViewCount(ctx, tenant.ID, created.ID))
	got, err := store.GetFAQ(ctx, tenant.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)

	require.NoError(t, store.DeleteFAQ(ctx, tenant.ID, created.ID))
	_, err = store.GetFAQ(ctx, tenant.ID, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFAQCrossTenantAccessRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)
	other, err := store.CreateTenant(ctx, "B店", datatypes.IndustryVeterinary)
	require.NoError(t, err)

	faq, err := store.CreateFAQ(ctx, owner.ID, &datatypes.CreateFAQRequest{
		Question: "駐車場はありますか",
		Answer:   "店舗前に3台分ございます。",
	})
	require.NoError(t, err)

	_, err = store.GetFAQ(ctx, other.ID, faq.ID)
	assert.ErrorIs(t, err, ErrTenantMismatch)

	err = store.DeleteFAQ(ctx, other.ID, faq.ID)
	assert.Error(t, err)

	// The owner still sees the record.
	got, err := store.GetFAQ(ctx, owner.ID, faq.ID)
	require.NoError(t, err)
	assert.Equal(t, faq.ID, got.ID)
}

func TestRetrieveIsTenantScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenantA, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)
	tenantB, err := store.CreateTenant(ctx, "B店", datatypes.IndustryPetShop)
	require.NoError(t, err)

	_, err = store.CreateFAQ(ctx, tenantA.ID, &datatypes.CreateFAQRequest{
		Question: "トリミングの料金はいくらですか",
		Answer:   "小型犬は3000円からです。",
	})
	require.NoError(t, err)
	_, err = store.CreateFAQ(ctx, tenantB.ID, &datatypes.CreateFAQRequest{
		Question: "トリミングの予約方法",
		Answer:   "お電話にて承ります。",
	})
	require.NoError(t, err)

	matches, err := store.Retrieve(ctx, tenantA.ID, "トリミング 料金", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Answer, "3000円")
}

func TestRetrieveOrdersByViewCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryGeneral)
	require.NoError(t, err)

	cold, err := store.CreateFAQ(ctx, tenant.ID, &datatypes.CreateFAQRequest{
		Question: "配送について",
		Answer:   "配送は全国対応です。",
	})
	require.NoError(t, err)
	hot, err := store.CreateFAQ(ctx, tenant.ID, &datatypes.CreateFAQRequest{
		Question: "配送料金について",
		Answer:   "配送料金は一律500円です。",
	})
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, store.IncrementViewCount(ctx, tenant.ID, hot.ID))
	}

	matches, err := store.Retrieve(ctx, tenant.ID, "配送", 3)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "配送料金について", matches[0].Question)
	assert.Equal(t, cold.Question, matches[1].Question)
}

func TestRetrieveSkipsInactiveFAQs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryGeneral)
	require.NoError(t, err)
	faq, err := store.CreateFAQ(ctx, tenant.ID, &datatypes.CreateFAQRequest{
		Question: "返品について",
		Answer:   "未開封に限り7日以内で承ります。",
	})
	require.NoError(t, err)

	inactive := false
	_, err = store.UpdateFAQ(ctx, tenant.ID, faq.ID, &datatypes.UpdateFAQRequest{IsActive: &inactive})
	require.NoError(t, err)

	matches, err := store.Retrieve(ctx, tenant.ID, "返品", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRetrieveNoMatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryGeneral)
	require.NoError(t, err)

	matches, err := store.Retrieve(ctx, tenant.ID, "存在しない問い合わせ", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"spaces", "トリミング 料金 予約", []string{"トリミング", "料金", "予約"}},
		{"japanese punctuation", "営業時間は？定休日も。", []string{"営業時間は", "定休日も"}},
		{"full-width space", "配送　料金", []string{"配送", "料金"}},
		{"short tokens dropped", "a 犬 料金", []string{"料金"}},
		{"caps at three", "一つ目 二つ目 三つ目 四つ目", []string{"一つ目", "二つ目", "三つ目"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitKeywords(tt.query))
		})
	}
}

func TestSessionAndMessageFlow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)

	sessionID := "sess-1"
	require.NoError(t, store.CreateSession(ctx, tenant.ID, sessionID, datatypes.ChannelWeb))

	confidence := 0.8
	require.NoError(t, store.SaveMessage(ctx, &datatypes.StoredMessage{
		SessionID: sessionID,
		Role:      datatypes.RoleUser,
		Content:   "営業時間を教えて",
	}))
	require.NoError(t, store.SaveMessage(ctx, &datatypes.StoredMessage{
		SessionID:  sessionID,
		Role:       datatypes.RoleAssistant,
		Content:    "10時から19時です。",
		Confidence: &confidence,
		Tokens:     42,
	}))

	messages, err := store.GetSessionMessages(ctx, tenant.ID, sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, datatypes.RoleUser, messages[0].Role)
	require.NotNil(t, messages[1].Confidence)
	assert.InDelta(t, 0.8, *messages[1].Confidence, 1e-9)

	require.NoError(t, store.MarkEscalated(ctx, tenant.ID, sessionID, "信頼度が低い (40%)"))
	require.NoError(t, store.EndSession(ctx, tenant.ID, sessionID))

	sessions, err := store.ListSessions(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsEscalated)
	assert.Equal(t, "信頼度が低い (40%)", sessions[0].EscalationReason)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.NotNil(t, sessions[0].EndedAt)
}

func TestGetSessionMessagesCrossTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)
	other, err := store.CreateTenant(ctx, "B店", datatypes.IndustryPetShop)
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, owner.ID, "sess-1", datatypes.ChannelWeb))

	_, err = store.GetSessionMessages(ctx, other.ID, "sess-1")
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestSessionTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, tenant.ID, "sess-1", datatypes.ChannelWeb))

	owner, err := store.SessionTenant(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, owner)

	_, err = store.SessionTenant(ctx, "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalytics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.CreateTenant(ctx, "A店", datatypes.IndustryPetShop)
	require.NoError(t, err)

	faq, err := store.CreateFAQ(ctx, tenant.ID, &datatypes.CreateFAQRequest{
		Question: "営業時間",
		Answer:   "10時から19時です。",
	})
	require.NoError(t, err)
	require.NoError(t, store.IncrementViewCount(ctx, tenant.ID, faq.ID))

	require.NoError(t, store.CreateSession(ctx, tenant.ID, "sess-1", datatypes.ChannelWeb))
	require.NoError(t, store.CreateSession(ctx, tenant.ID, "sess-2", datatypes.ChannelLine))
	require.NoError(t, store.MarkEscalated(ctx, tenant.ID, "sess-2", "エスカレーションキーワード検出: \"返金\""))
	require.NoError(t, store.SaveMessage(ctx, &datatypes.StoredMessage{
		SessionID: "sess-1",
		Role:      datatypes.RoleUser,
		Content:   "こんにちは",
	}))

	summary, err := store.Analytics(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 1, summary.EscalatedSessions)
	assert.InDelta(t, 0.5, summary.EscalationRate, 1e-9)
	assert.Equal(t, 1, summary.TotalMessages)
	assert.Equal(t, 1, summary.ActiveFAQs)
	require.Len(t, summary.TopFAQs, 1)
	assert.Equal(t, "営業時間", summary.TopFAQs[0].Question)
}
