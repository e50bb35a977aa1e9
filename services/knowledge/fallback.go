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
	"log/slog"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// FallbackRetriever tries a primary retriever and degrades to a
// secondary one when the primary fails or finds nothing. Used to run
// Weaviate BM25 in front of the sqlite keyword search without making
// Weaviate a hard dependency.
type FallbackRetriever struct {
	primary   Retriever
	secondary Retriever
}

var _ Retriever = (*FallbackRetriever)(nil)

// NewFallbackRetriever wires primary over secondary.
func NewFallbackRetriever(primary, secondary Retriever) *FallbackRetriever {
	return &FallbackRetriever{primary: primary, secondary: secondary}
}

// Retrieve implements the Retriever interface.
func (r *FallbackRetriever) Retrieve(ctx context.Context, tenantID, queryText string, limit int) ([]datatypes.MatchedFAQ, error) {
	matches, err := r.primary.Retrieve(ctx, tenantID, queryText, limit)
	if err != nil {
		slog.Warn("Primary retriever failed, falling back", "tenant_id", tenantID, "error", err)
		return r.secondary.Retrieve(ctx, tenantID, queryText, limit)
	}
	if len(matches) == 0 {
		return r.secondary.Retrieve(ctx, tenantID, queryText, limit)
	}
	return matches, nil
}
