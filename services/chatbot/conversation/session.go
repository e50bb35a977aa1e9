// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation keeps the in-memory rolling history of active
// chat sessions.
//
// # Description
//
// The pipeline receives conversation history per call; this package is
// where that history lives between calls. Each session holds a bounded
// window of recent turns (old turns fall off the front as new ones
// arrive) and the store evicts sessions that have been idle too long.
// Durable history goes to the relational store; this layer only feeds
// the prompt context.
package conversation

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// MaxSessionTurns bounds the per-session rolling window. The oldest
// turn is dropped when a new one would exceed it.
const MaxSessionTurns = 20

// Session is one conversation's rolling turn window.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Session struct {
	ID       string
	TenantID string
	Channel  string

	mu       sync.Mutex
	turns    []datatypes.Message
	lastSeen time.Time
}

// Append adds one turn, evicting the oldest when the window is full.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) >= MaxSessionTurns {
		copy(s.turns, s.turns[1:])
		s.turns = s.turns[:MaxSessionTurns-1]
	}
	s.turns = append(s.turns, datatypes.Message{Role: role, Content: content})
	s.lastSeen = time.Now()
}

// History returns a copy of the current window, oldest first.
func (s *Session) History() []datatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datatypes.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns currently held.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Touch refreshes the idle timer without adding a turn.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// StoreConfig holds configuration for the session store.
type StoreConfig struct {
	// IdleTimeout is how long a session may sit untouched before the
	// sweeper evicts it. Default: 30m
	IdleTimeout time.Duration

	// SweepInterval is how often the sweeper scans for idle sessions.
	// Default: 5m
	SweepInterval time.Duration
}

// DefaultStoreConfig returns the default store configuration. Values
// can be overridden via environment variables:
//   - SESSION_IDLE_TIMEOUT_MIN (default: 30)
//   - SESSION_SWEEP_INTERVAL_MIN (default: 5)
//
// Non-positive overrides fall back to the defaults; the sweeper ticker
// requires a positive interval.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		IdleTimeout:   time.Duration(getEnvMinutes("SESSION_IDLE_TIMEOUT_MIN", 30)) * time.Minute,
		SweepInterval: time.Duration(getEnvMinutes("SESSION_SWEEP_INTERVAL_MIN", 5)) * time.Minute,
	}
}

// getEnvMinutes returns an environment variable as a positive int, or
// defaultVal when unset, invalid, or non-positive.
func getEnvMinutes(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}
