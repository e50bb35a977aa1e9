// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the answer confidence heuristic.
package pipeline

import (
	"math"
	"strings"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// answerOverlapRunes is how many leading runes of a stored answer must
// appear in the generated answer to count as grounded content.
const answerOverlapRunes = 20

// noMatchConfidence is the score assigned when retrieval found
// nothing to ground the answer on.
const noMatchConfidence = 0.3

// CalculateConfidence scores how grounded the generated answer is in
// the retrieved FAQ set.
//
// # Description
//
// The score combines two signals:
//
//   - Match breadth: min(matches/3, 1.0) * 0.6. More matched FAQs mean
//     the question sits squarely inside the tenant's knowledge.
//   - Content overlap: 0.4 when the answer contains the leading runes
//     of any matched FAQ answer, 0.2 otherwise. An answer that echoes
//     stored content is likelier to be faithful to it.
//
// Zero matches short-circuit to 0.3 regardless of the answer text, and
// the combined score is capped at 1.0.
func CalculateConfidence(matches []datatypes.MatchedFAQ, generated string) float64 {
	if len(matches) == 0 {
		return noMatchConfidence
	}

	matchScore := math.Min(float64(len(matches))/3.0, 1.0) * 0.6

	contentScore := 0.2
	for _, m := range matches {
		if strings.Contains(generated, runePrefix(m.Answer, answerOverlapRunes)) {
			contentScore = 0.4
			break
		}
	}

	return math.Min(matchScore+contentScore, 1.0)
}

// runePrefix returns the first n runes of s, or s itself when shorter.
// Rune-based so Japanese text is not cut mid-character.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
