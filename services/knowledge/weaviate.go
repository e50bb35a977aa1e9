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
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// faqClassName is the Weaviate class holding FAQ records.
const faqClassName = "TenantFAQ"

// WeaviateRetriever serves FAQ retrieval through Weaviate BM25 search.
//
// # Description
//
// When a Weaviate deployment is configured, retrieval quality improves
// over the LIKE-based keyword search: BM25 ranks by term relevance and
// reports a score that surfaces as the match similarity. Tenant
// isolation is enforced with a where-filter on the tenant_id property
// of every query.
//
// The retriever is read-only; FAQ writes go to the relational store,
// and an external sync job mirrors them into Weaviate. When Weaviate
// is unreachable the caller falls back to the keyword store, so this
// backend is an optimization, never a requirement.
type WeaviateRetriever struct {
	client *weaviate.Client
}

// Compile-time interface compliance.
var _ Retriever = (*WeaviateRetriever)(nil)

// NewWeaviateRetriever connects to Weaviate at rawURL and ensures the
// FAQ class exists.
func NewWeaviateRetriever(ctx context.Context, rawURL string) (*WeaviateRetriever, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL: %s", rawURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	r := &WeaviateRetriever{client: client}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	slog.Info("Weaviate retriever initialized", "url", rawURL)
	return r, nil
}

// ensureSchema creates the TenantFAQ class when it does not exist yet.
func (r *WeaviateRetriever) ensureSchema(ctx context.Context) error {
	exists, err := r.client.Schema().ClassExistenceChecker().
		WithClassName(faqClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check Weaviate schema: %w", err)
	}
	if exists {
		return nil
	}

	indexFilterable := new(bool)
	*indexFilterable = true

	class := &models.Class{
		Class:       faqClassName,
		Description: "A tenant-scoped FAQ record used as retrieval context.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The stored question text.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The stored answer text.",
				Tokenization: "word",
			},
			{
				Name:            "tenant_id",
				DataType:        []string{"text"},
				Description:     "Owning tenant; every query filters on this.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "view_count",
				DataType:        []string{"int"},
				Description:     "Popularity counter mirrored from the relational store.",
				IndexFilterable: indexFilterable,
			},
		},
	}
	if err := r.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create Weaviate schema: %w", err)
	}
	slog.Info("Created Weaviate class", "class", faqClassName)
	return nil
}

// Retrieve implements the Retriever interface with BM25 ranking.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, tenantID, queryText string, limit int) ([]datatypes.MatchedFAQ, error) {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}

	fields := []graphql.Field{
		{Name: "question"},
		{Name: "answer"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}
	where := filters.Where().
		WithPath([]string{"tenant_id"}).
		WithOperator(filters.Equal).
		WithValueString(tenantID)
	bm25 := r.client.GraphQL().Bm25ArgBuilder().
		WithQuery(queryText).
		WithProperties("question", "answer")

	result, err := r.client.GraphQL().Get().
		WithClassName(faqClassName).
		WithFields(fields...).
		WithWhere(where).
		WithBM25(bm25).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query returned errors: %s", result.Errors[0].Message)
	}

	return parseFAQResults(result.Data), nil
}

// parseFAQResults walks the GraphQL response shape. A malformed
// payload yields an empty match list, not a panic.
func parseFAQResults(data map[string]models.JSONObject) []datatypes.MatchedFAQ {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[faqClassName].([]interface{})
	if !ok {
		return nil
	}

	var matches []datatypes.MatchedFAQ
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m := datatypes.MatchedFAQ{}
		m.Question, _ = obj["question"].(string)
		m.Answer, _ = obj["answer"].(string)
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if score := parseScore(additional["score"]); score != nil {
				m.Similarity = score
			}
		}
		if m.Question == "" && m.Answer == "" {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// parseScore handles both representations Weaviate uses for the BM25
// score (string in GraphQL JSON, float when pre-decoded).
func parseScore(v interface{}) *float64 {
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	case float64:
		return &s
	default:
		return nil
	}
}
