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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordEscalationOverridesConfidence(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	// A fully confident answer still escalates on a keyword hit.
	decision := d.Decide("緊急で相談したいことがあります", "承知しました。", 1.0)
	assert.True(t, decision.Escalate)
	assert.Equal(t, TriggerKeyword, decision.Trigger)
	assert.Equal(t, `エスカレーションキーワード検出: "緊急"`, decision.Reason)
}

func TestKeywordEscalationScansAnswerToo(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	decision := d.Decide("この商品を戻したい", "返金の手続きをご案内します。", 0.9)
	assert.True(t, decision.Escalate)
	assert.Equal(t, `エスカレーションキーワード検出: "返金"`, decision.Reason)
}

func TestKeywordEscalationFirstMatchWins(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	// 危険 precedes クレーム in the keyword list, so the reason names
	// 危険 even though both appear.
	decision := d.Decide("危険な商品についてクレームがあります", "", 1.0)
	assert.True(t, decision.Escalate)
	assert.Equal(t, `エスカレーションキーワード検出: "危険"`, decision.Reason)
}

func TestDeathKeywordEscalates(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	decision := d.Decide("飼っている金魚が死にそうです", "ご心配ですね。", 1.0)
	assert.True(t, decision.Escalate)
	assert.Equal(t, TriggerKeyword, decision.Trigger)
	assert.Contains(t, decision.Reason, `"死"`)
}

func TestLowConfidenceThresholdIsStrict(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	// Exactly at the threshold does not escalate.
	atThreshold := d.Decide("営業時間を教えて", "10時から19時です。", 0.6)
	assert.False(t, atThreshold.Escalate)
	assert.Empty(t, atThreshold.Reason)

	below := d.Decide("営業時間を教えて", "10時から19時です。", 0.599)
	assert.True(t, below.Escalate)
	assert.Equal(t, TriggerLowConfidence, below.Trigger)
	assert.Equal(t, "信頼度が低い (60%)", below.Reason)

	lower := d.Decide("営業時間を教えて", "分かりかねます。", 0.3)
	assert.True(t, lower.Escalate)
	assert.Equal(t, "信頼度が低い (30%)", lower.Reason)
}

func TestKeywordMatchIsCaseInsensitive(t *testing.T) {
	d := NewDetector(EscalationConfig{
		Keywords:            []string{"refund"},
		ConfidenceThreshold: 0.6,
	})

	decision := d.Decide("I want a REFUND now", "", 1.0)
	assert.True(t, decision.Escalate)
	assert.Equal(t, `エスカレーションキーワード検出: "refund"`, decision.Reason)
}

func TestLoadEscalationConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - 解約\n  - 訴訟\nconfidence_threshold: 0.5\n"), 0o644))

	cfg, err := LoadEscalationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"解約", "訴訟"}, cfg.Keywords)
	assert.InDelta(t, 0.5, cfg.ConfidenceThreshold, 1e-9)

	d := NewDetector(cfg)
	assert.True(t, d.Decide("解約したい", "", 1.0).Escalate)
	assert.False(t, d.Decide("緊急です", "", 1.0).Escalate)
	assert.False(t, d.Decide("営業時間は", "", 0.55).Escalate)
}

func TestLoadEscalationConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence_threshold: 0.7\n"), 0o644))

	cfg, err := LoadEscalationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultEscalationConfig().Keywords, cfg.Keywords)
	assert.InDelta(t, 0.7, cfg.ConfidenceThreshold, 1e-9)
}

func TestZeroThresholdDisablesConfidenceGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - 解約\nconfidence_threshold: 0\n"), 0o644))

	cfg, err := LoadEscalationConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.ConfidenceThreshold)

	// Startup and hot reload treat the explicit 0 the same way: only
	// keywords escalate.
	fromNew := NewDetector(cfg)
	assert.False(t, fromNew.Decide("営業時間は", "", 0.1).Escalate)
	assert.True(t, fromNew.Decide("解約したい", "", 0.1).Escalate)

	fromReload := NewDetector(DefaultEscalationConfig())
	require.NoError(t, fromReload.Reload(cfg))
	assert.False(t, fromReload.Decide("営業時間は", "", 0.1).Escalate)
	assert.True(t, fromReload.Decide("解約したい", "", 0.1).Escalate)
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	d := NewDetector(DefaultEscalationConfig())

	err := d.Reload(EscalationConfig{Keywords: nil, ConfidenceThreshold: 0.5})
	assert.Error(t, err)

	err = d.Reload(EscalationConfig{Keywords: []string{"x"}, ConfidenceThreshold: 1.5})
	assert.Error(t, err)

	// The original config remains in effect.
	assert.True(t, d.Decide("緊急", "", 1.0).Escalate)
}
