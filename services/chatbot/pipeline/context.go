// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains LLM message construction from retrieval results
// and conversation history.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// maxContextTurns bounds how many trailing history turns are sent to
// the LLM per call. The session store keeps a longer window; this cap
// keeps the prompt within the model's context budget.
const maxContextTurns = 6

// emptyKnowledgeBlock is substituted for {faqContext} when retrieval
// found nothing, so the system prompt never carries an empty section.
const emptyKnowledgeBlock = "FAQ情報なし"

// BuildFAQContext renders the matched FAQs as a numbered block for the
// system prompt. Returns "" when there are no matches.
func BuildFAQContext(matches []datatypes.MatchedFAQ) string {
	if len(matches) == 0 {
		return ""
	}
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("[FAQ%d]\nQ: %s\nA: %s", i+1, m.Question, m.Answer)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildMessages assembles the ordered message list for one LLM call:
// the expanded system prompt, the trailing history window, then the
// expanded human turn.
//
// History turns keep their role when they came from the user; turns
// the assistant produced are re-sent as system messages prefixed with
// "アシスタント: " so the model sees its prior answers as context
// rather than as turns to continue.
func BuildMessages(systemContent string, history []datatypes.Message, humanContent string) []datatypes.Message {
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: systemContent})
	for _, turn := range history {
		if turn.Role == datatypes.RoleUser {
			messages = append(messages, turn)
			continue
		}
		messages = append(messages, datatypes.Message{
			Role:    datatypes.RoleSystem,
			Content: "アシスタント: " + turn.Content,
		})
	}
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: humanContent})
	return messages
}
