// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge provides the tenant-scoped data store for the
// chatbot service: tenants, FAQ records, and persisted chat sessions.
//
// The default backend is SQLite (pure-Go modernc driver) with a
// LIKE-based keyword search; an optional Weaviate BM25 retriever can
// replace the search path when a vector database is deployed. The
// response pipeline consumes this package only through the narrow
// Retriever and TenantDirectory interfaces, so either backend (or a
// test double) can serve it.
package knowledge

import (
	"context"
	"errors"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// DefaultRetrievalLimit bounds FAQ retrieval when the caller passes a
// non-positive limit.
const DefaultRetrievalLimit = 3

// Sentinel errors for store lookups. Handlers branch on these to pick
// HTTP status codes.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrTenantMismatch indicates the record exists but belongs to a
	// different tenant than the requester.
	ErrTenantMismatch = errors.New("record belongs to another tenant")
)

// Retriever is the knowledge lookup contract consumed by the response
// pipeline.
//
// # Description
//
// Retrieve returns FAQ records relevant to queryText, scoped to
// tenantID. Results are ordered most-relevant-first; limit bounds the
// result count. Implementations must guarantee tenant isolation:
// records created under another tenant are never returned, for any
// input.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, queryText string, limit int) ([]datatypes.MatchedFAQ, error)
}

// TenantDirectory resolves tenant display data for prompt building.
//
// GetTenant returns ErrNotFound for unknown ids; the pipeline treats
// that as a degraded (not fatal) condition.
type TenantDirectory interface {
	GetTenant(ctx context.Context, tenantID string) (*datatypes.Tenant, error)
}
