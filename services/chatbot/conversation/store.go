// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/observability"
)

// Store holds the active sessions, keyed by session id.
//
// # Description
//
// Get creates sessions on demand; a background sweeper evicts sessions
// idle longer than the configured timeout. Eviction only forgets the
// in-memory window; the relational store keeps the durable record.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Store struct {
	config StoreConfig

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stop     chan struct{}
}

// NewStore creates a session store. Zero-valued config fields fall
// back to defaults.
func NewStore(config StoreConfig) *Store {
	defaults := DefaultStoreConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	return &Store{
		config:   config,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
}

// Get returns the session for id, creating it when absent. The
// returned bool reports whether the session already existed.
func (st *Store) Get(id, tenantID, channel string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		sess.Touch()
		return sess, true
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		sess.Touch()
		return sess, true
	}
	sess = &Session{ID: id, TenantID: tenantID, Channel: channel, lastSeen: time.Now()}
	st.sessions[id] = sess
	observability.SetActiveSessions(len(st.sessions))
	return sess, false
}

// Lookup returns the session for id without creating one.
func (st *Store) Lookup(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete forgets a session's in-memory window.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	observability.SetActiveSessions(len(st.sessions))
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartSweeper launches the background eviction loop. Call Stop to
// shut it down.
func (st *Store) StartSweeper() {
	go func() {
		ticker := time.NewTicker(st.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.sweep()
			case <-st.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper. Safe to call more than once.
func (st *Store) Stop() {
	st.stopOnce.Do(func() { close(st.stop) })
}

// sweep evicts sessions idle past the timeout.
func (st *Store) sweep() {
	cutoff := time.Now().Add(-st.config.IdleTimeout)

	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for id, sess := range st.sessions {
		if sess.idleSince(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		observability.SetActiveSessions(len(st.sessions))
		slog.Debug("Evicted idle sessions", "count", evicted, "remaining", len(st.sessions))
	}
}
