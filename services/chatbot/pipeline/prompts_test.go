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
	"strings"
	"testing"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/stretchr/testify/assert"
)

func TestSelectPromptByIndustry(t *testing.T) {
	assert.Contains(t, SelectPrompt(datatypes.IndustryPetShop).System, "ペットショップ")
	assert.Contains(t, SelectPrompt(datatypes.IndustryBeautySalon).System, "美容サロン")
	assert.Contains(t, SelectPrompt(datatypes.IndustryVeterinary).System, "動物病院")

	general := SelectPrompt(datatypes.IndustryGeneral)
	assert.NotContains(t, general.System, "ペットショップ")
}

func TestSelectPromptUnknownIndustryFallsBack(t *testing.T) {
	unknown := SelectPrompt(datatypes.Industry("bakery"))
	assert.Equal(t, SelectPrompt(datatypes.IndustryGeneral), unknown)
}

func TestEveryPromptCarriesPlaceholders(t *testing.T) {
	for industry, tpl := range promptsByIndustry {
		assert.Contains(t, tpl.System, "{shopName}", "industry %s", industry)
		assert.Contains(t, tpl.System, "{faqContext}", "industry %s", industry)
		assert.Contains(t, tpl.Human, "{question}", "industry %s", industry)
	}
}

func TestExpandTemplate(t *testing.T) {
	got := expandTemplate("店舗「{shopName}」\n{faqContext}", map[string]string{
		"shopName":   "わんわん堂",
		"faqContext": "FAQ情報なし",
	})
	assert.Equal(t, "店舗「わんわん堂」\nFAQ情報なし", got)
	assert.False(t, strings.Contains(got, "{"))
}

func TestExpandTemplateLeavesUnknownPlaceholders(t *testing.T) {
	got := expandTemplate("{shopName} {other}", map[string]string{"shopName": "A店"})
	assert.Equal(t, "A店 {other}", got)
}

func TestExpandTemplateDoesNotRecurse(t *testing.T) {
	// A shop name that itself looks like a placeholder is inserted
	// literally, never re-expanded.
	got := expandTemplate("{shopName}: {faqContext}", map[string]string{
		"shopName":   "{faqContext}",
		"faqContext": "秘密のFAQ",
	})
	assert.Equal(t, "{faqContext}: 秘密のFAQ", got)
}
