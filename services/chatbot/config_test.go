// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/chatbot.db", cfg.DBPath)
	assert.Equal(t, "gemini", cfg.LLMBackend)
	assert.False(t, cfg.DisableMetrics)
}

func TestApplyConfigDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:           9090,
		DBPath:         "/tmp/x.db",
		LLMBackend:     "ollama",
		DisableMetrics: true,
	})
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.True(t, cfg.DisableMetrics)
}
