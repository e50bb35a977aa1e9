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

	"golang.org/x/sync/errgroup"
)

// TopFAQ is one entry of the popularity ranking.
type TopFAQ struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	ViewCount int    `json:"view_count"`
}

// AnalyticsSummary aggregates a tenant's chat activity for the
// dashboard.
//
// # Fields
//
//   - TotalSessions: All sessions ever started for the tenant.
//   - EscalatedSessions: Sessions flagged for human takeover.
//   - EscalationRate: EscalatedSessions / TotalSessions (0 when no
//     sessions exist).
//   - TotalMessages: All persisted turns across the tenant's sessions.
//   - ActiveFAQs: FAQ records currently served by retrieval.
//   - TopFAQs: Up to five most-viewed FAQs.
type AnalyticsSummary struct {
	TotalSessions     int      `json:"total_sessions"`
	EscalatedSessions int      `json:"escalated_sessions"`
	EscalationRate    float64  `json:"escalation_rate"`
	TotalMessages     int      `json:"total_messages"`
	ActiveFAQs        int      `json:"active_faqs"`
	TopFAQs           []TopFAQ `json:"top_faqs"`
}

// Analytics computes the tenant's summary.
//
// The independent aggregates run concurrently; SQLite in WAL mode
// serves parallel readers without contention.
func (s *Store) Analytics(ctx context.Context, tenantID string) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM chat_sessions WHERE tenant_id = ?`, tenantID).
			Scan(&summary.TotalSessions)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM chat_sessions WHERE tenant_id = ? AND is_escalated = 1`, tenantID).
			Scan(&summary.EscalatedSessions)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM chat_messages m
			 JOIN chat_sessions s ON s.id = m.session_id
			 WHERE s.tenant_id = ?`, tenantID).
			Scan(&summary.TotalMessages)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM faqs WHERE tenant_id = ? AND is_active = 1`, tenantID).
			Scan(&summary.ActiveFAQs)
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT id, question, view_count FROM faqs
			 WHERE tenant_id = ? AND is_active = 1
			 ORDER BY view_count DESC LIMIT 5`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var top TopFAQ
			if err := rows.Scan(&top.ID, &top.Question, &top.ViewCount); err != nil {
				return err
			}
			summary.TopFAQs = append(summary.TopFAQs, top)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute analytics: %w", err)
	}

	if summary.TotalSessions > 0 {
		summary.EscalationRate = float64(summary.EscalatedSessions) / float64(summary.TotalSessions)
	}
	return summary, nil
}
