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
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// maxSearchKeywords bounds how many split keywords join the search
// query. Mirrors the legacy service's keyword-split search.
const maxSearchKeywords = 3

// Store is the SQLite-backed implementation of the chatbot data store.
//
// # Description
//
// Store owns four tables: tenants, faqs, chat_sessions and
// chat_messages. All FAQ and session operations are scoped by tenant
// id in the SQL itself, never filtered after the fact, so tenant
// isolation does not depend on caller discipline.
//
// # Thread Safety
//
// Safe for concurrent use; database/sql pools connections and the
// database runs in WAL mode.
type Store struct {
	db *sql.DB
}

// Compile-time interface compliance.
var (
	_ Retriever       = (*Store)(nil)
	_ TenantDirectory = (*Store)(nil)
)

// NewStore opens (and if needed creates) the SQLite database at dbPath.
//
// # Inputs
//
//   - dbPath: Filesystem path for the database file. The parent
//     directory is created when missing.
//
// # Outputs
//
//   - *Store: Ready-to-use store with schema applied.
//   - error: Non-nil when the database cannot be opened or migrated.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers during chat traffic.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		industry TEXT NOT NULL DEFAULT 'general',
		status TEXT NOT NULL DEFAULT 'active',
		api_key TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS faqs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		is_active INTEGER NOT NULL DEFAULT 1,
		view_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_faqs_tenant ON faqs(tenant_id, is_active);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		channel TEXT NOT NULL DEFAULT 'web',
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		is_escalated INTEGER NOT NULL DEFAULT 0,
		escalation_reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_tenant ON chat_sessions(tenant_id, started_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL,
		tokens INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Tenants
// =============================================================================

// CreateTenant inserts a new tenant with a fresh id and API key.
func (s *Store) CreateTenant(ctx context.Context, name string, industry datatypes.Industry) (*datatypes.Tenant, error) {
	tenant := &datatypes.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Industry:  industry,
		Status:    datatypes.TenantStatusActive,
		APIKey:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, industry, status, api_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tenant.ID, tenant.Name, string(tenant.Industry), tenant.Status, tenant.APIKey, tenant.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	slog.Info("Tenant created", "tenant_id", tenant.ID, "industry", tenant.Industry)
	return tenant, nil
}

// GetTenant implements the TenantDirectory interface.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*datatypes.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, industry, status, api_key, created_at FROM tenants WHERE id = ?`, tenantID)
	return scanTenant(row)
}

// GetTenantByAPIKey resolves a tenant from its API key. Used by the
// auth middleware.
func (s *Store) GetTenantByAPIKey(ctx context.Context, apiKey string) (*datatypes.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, industry, status, api_key, created_at FROM tenants WHERE api_key = ?`, apiKey)
	return scanTenant(row)
}

func scanTenant(row *sql.Row) (*datatypes.Tenant, error) {
	var t datatypes.Tenant
	var industry string
	var createdAt int64
	err := row.Scan(&t.ID, &t.Name, &industry, &t.Status, &t.APIKey, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant row: %w", err)
	}
	t.Industry = datatypes.ParseIndustry(industry)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

// =============================================================================
// FAQs
// =============================================================================

// CreateFAQ inserts a new FAQ record for the tenant.
func (s *Store) CreateFAQ(ctx context.Context, tenantID string, req *datatypes.CreateFAQRequest) (*datatypes.FAQ, error) {
	now := time.Now().UTC()
	category := req.Category
	if category == "" {
		category = "general"
	}
	faq := &datatypes.FAQ{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Question:  req.Question,
		Answer:    req.Answer,
		Category:  category,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO faqs (id, tenant_id, question, answer, category, is_active, view_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?)`,
		faq.ID, faq.TenantID, faq.Question, faq.Answer, faq.Category, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert faq: %w", err)
	}
	return faq, nil
}

// GetFAQ fetches a single FAQ, verifying tenant ownership.
//
// Returns ErrNotFound when the id does not exist and ErrTenantMismatch
// when it belongs to another tenant.
func (s *Store) GetFAQ(ctx context.Context, tenantID, id string) (*datatypes.FAQ, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, question, answer, category, is_active, view_count, created_at, updated_at
		 FROM faqs WHERE id = ?`, id)
	faq, err := scanFAQ(row)
	if err != nil {
		return nil, err
	}
	if faq.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return faq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFAQ(row rowScanner) (*datatypes.FAQ, error) {
	var f datatypes.FAQ
	var isActive int
	var createdAt, updatedAt int64
	err := row.Scan(&f.ID, &f.TenantID, &f.Question, &f.Answer, &f.Category,
		&isActive, &f.ViewCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan faq row: %w", err)
	}
	f.IsActive = isActive != 0
	f.CreatedAt = time.Unix(createdAt, 0).UTC()
	f.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &f, nil
}

// ListFAQs returns the tenant's FAQs, newest first.
func (s *Store) ListFAQs(ctx context.Context, tenantID string, limit, offset int) ([]datatypes.FAQ, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, question, answer, category, is_active, view_count, created_at, updated_at
		 FROM faqs WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query faqs: %w", err)
	}
	defer rows.Close()

	var faqs []datatypes.FAQ
	for rows.Next() {
		faq, err := scanFAQ(rows)
		if err != nil {
			return nil, err
		}
		faqs = append(faqs, *faq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faqs: %w", err)
	}
	return faqs, nil
}

// UpdateFAQ applies a partial update after verifying tenant ownership.
func (s *Store) UpdateFAQ(ctx context.Context, tenantID, id string, req *datatypes.UpdateFAQRequest) (*datatypes.FAQ, error) {
	faq, err := s.GetFAQ(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Question != nil {
		faq.Question = *req.Question
	}
	if req.Answer != nil {
		faq.Answer = *req.Answer
	}
	if req.Category != nil {
		faq.Category = *req.Category
	}
	if req.IsActive != nil {
		faq.IsActive = *req.IsActive
	}
	faq.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE faqs SET question = ?, answer = ?, category = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		faq.Question, faq.Answer, faq.Category, boolToInt(faq.IsActive), faq.UpdatedAt.Unix(), id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("update faq: %w", err)
	}
	return faq, nil
}

// DeleteFAQ removes a FAQ after verifying tenant ownership.
func (s *Store) DeleteFAQ(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetFAQ(ctx, tenantID, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM faqs WHERE id = ? AND tenant_id = ?`, id, tenantID); err != nil {
		return fmt.Errorf("delete faq: %w", err)
	}
	return nil
}

// IncrementViewCount bumps the popularity counter for a FAQ.
// Retrieval ordering and the analytics top-FAQ list both read it.
func (s *Store) IncrementViewCount(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE faqs SET view_count = view_count + 1 WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// FAQ Retrieval
// =============================================================================

// Retrieve implements the Retriever interface with keyword search.
//
// # Description
//
// Matches active FAQs of the tenant whose question or answer contains
// the full query text or any of up to three extracted keywords, and
// orders by popularity (view count). This reproduces the legacy text
// search so the service behaves identically on backends without
// vector support.
func (s *Store) Retrieve(ctx context.Context, tenantID, queryText string, limit int) ([]datatypes.MatchedFAQ, error) {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}

	clauses := []string{"(question LIKE ? OR answer LIKE ?)"}
	args := []any{tenantID, "%" + queryText + "%", "%" + queryText + "%"}
	for _, word := range splitKeywords(queryText) {
		clauses = append(clauses, "(question LIKE ? OR answer LIKE ?)")
		args = append(args, "%"+word+"%", "%"+word+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT question, answer FROM faqs
		 WHERE tenant_id = ? AND is_active = 1 AND (%s)
		 ORDER BY view_count DESC LIMIT ?`,
		strings.Join(clauses, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search faqs: %w", err)
	}
	defer rows.Close()

	var matches []datatypes.MatchedFAQ
	for rows.Next() {
		var m datatypes.MatchedFAQ
		if err := rows.Scan(&m.Question, &m.Answer); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return matches, nil
}

// splitKeywords extracts up to maxSearchKeywords search terms from the
// query. Splits on ASCII/full-width spaces and Japanese punctuation;
// single-rune fragments are dropped as noise.
func splitKeywords(queryText string) []string {
	fields := strings.FieldsFunc(queryText, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '　', '、', '。', '？', '?', '！', '!':
			return true
		}
		return false
	})
	var words []string
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		words = append(words, f)
		if len(words) == maxSearchKeywords {
			break
		}
	}
	return words
}

// =============================================================================
// Chat Sessions & Messages
// =============================================================================

// CreateSession persists a new chat session record.
func (s *Store) CreateSession(ctx context.Context, tenantID, sessionID, channel string) error {
	if channel == "" {
		channel = datatypes.ChannelWeb
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, tenant_id, channel, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, tenantID, channel, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SaveMessage persists one conversation turn.
func (s *Store) SaveMessage(ctx context.Context, msg *datatypes.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var confidence any
	if msg.Confidence != nil {
		confidence = *msg.Confidence
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, confidence, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, confidence, msg.Tokens, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MarkEscalated flags a session as handed off to a human agent.
func (s *Store) MarkEscalated(ctx context.Context, tenantID, sessionID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET is_escalated = 1, escalation_reason = ?
		 WHERE id = ? AND tenant_id = ?`,
		reason, sessionID, tenantID)
	if err != nil {
		return fmt.Errorf("mark escalated: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, tenantID, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET ended_at = ? WHERE id = ? AND tenant_id = ? AND ended_at IS NULL`,
		time.Now().Unix(), sessionID, tenantID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns the tenant's sessions, newest first, with
// message counts.
func (s *Store) ListSessions(ctx context.Context, tenantID string, limit int) ([]datatypes.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.tenant_id, s.channel, s.started_at, s.ended_at, s.is_escalated, s.escalation_reason,
		        (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		 FROM chat_sessions s WHERE s.tenant_id = ?
		 ORDER BY s.started_at DESC LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []datatypes.SessionSummary
	for rows.Next() {
		var sum datatypes.SessionSummary
		var startedAt int64
		var endedAt sql.NullInt64
		var escalated int
		var reason sql.NullString
		if err := rows.Scan(&sum.ID, &sum.TenantID, &sum.Channel, &startedAt, &endedAt,
			&escalated, &reason, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sum.StartedAt = time.Unix(startedAt, 0).UTC()
		if endedAt.Valid {
			t := time.Unix(endedAt.Int64, 0).UTC()
			sum.EndedAt = &t
		}
		sum.IsEscalated = escalated != 0
		sum.EscalationReason = reason.String
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// SessionTenant returns the owning tenant id of a persisted session,
// or ErrNotFound when no such session exists.
func (s *Store) SessionTenant(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM chat_sessions WHERE id = ?`, sessionID).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session owner: %w", err)
	}
	return owner, nil
}

// GetSessionMessages returns a session's messages in chronological
// order, verifying tenant ownership of the session.
func (s *Store) GetSessionMessages(ctx context.Context, tenantID, sessionID string) ([]datatypes.StoredMessage, error) {
	owner, err := s.SessionTenant(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if owner != tenantID {
		return nil, ErrTenantMismatch
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, confidence, tokens, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []datatypes.StoredMessage
	for rows.Next() {
		var m datatypes.StoredMessage
		var confidence sql.NullFloat64
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &confidence, &m.Tokens, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if confidence.Valid {
			c := confidence.Float64
			m.Confidence = &c
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
