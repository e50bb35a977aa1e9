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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStoreConfigRejectsNonPositiveOverrides(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT_MIN", "-10")
	t.Setenv("SESSION_SWEEP_INTERVAL_MIN", "0")

	cfg := DefaultStoreConfig()
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)

	// The ticker interval reaching StartSweeper is positive.
	st := NewStore(cfg)
	defer st.Stop()
	assert.Greater(t, st.config.SweepInterval, time.Duration(0))
}

func TestSessionWindowDropsOldest(t *testing.T) {
	sess := &Session{ID: "s1"}

	for i := 0; i < MaxSessionTurns+5; i++ {
		sess.Append(datatypes.RoleUser, fmt.Sprintf("turn-%d", i))
	}

	history := sess.History()
	require.Len(t, history, MaxSessionTurns)
	assert.Equal(t, "turn-5", history[0].Content)
	assert.Equal(t, fmt.Sprintf("turn-%d", MaxSessionTurns+4), history[MaxSessionTurns-1].Content)
}

func TestSessionHistoryIsACopy(t *testing.T) {
	sess := &Session{ID: "s1"}
	sess.Append(datatypes.RoleUser, "original")

	history := sess.History()
	history[0].Content = "mutated"

	assert.Equal(t, "original", sess.History()[0].Content)
}

func TestSessionConcurrentAppend(t *testing.T) {
	sess := &Session{ID: "s1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess.Append(datatypes.RoleUser, fmt.Sprintf("turn-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, MaxSessionTurns, sess.Len())
}

func TestStoreGetCreatesOnDemand(t *testing.T) {
	st := NewStore(StoreConfig{})
	defer st.Stop()

	sess, existed := st.Get("s1", "tenant-1", datatypes.ChannelWeb)
	assert.False(t, existed)
	assert.Equal(t, "tenant-1", sess.TenantID)

	again, existed := st.Get("s1", "tenant-1", datatypes.ChannelWeb)
	assert.True(t, existed)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, st.Len())
}

func TestStoreDelete(t *testing.T) {
	st := NewStore(StoreConfig{})
	defer st.Stop()

	st.Get("s1", "tenant-1", datatypes.ChannelWeb)
	st.Delete("s1")

	_, ok := st.Lookup("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	st := NewStore(StoreConfig{
		IdleTimeout:   10 * time.Millisecond,
		SweepInterval: time.Hour, // sweep manually
	})
	defer st.Stop()

	st.Get("stale", "tenant-1", datatypes.ChannelWeb)
	time.Sleep(20 * time.Millisecond)
	fresh, _ := st.Get("fresh", "tenant-1", datatypes.ChannelWeb)
	fresh.Touch()

	st.sweep()

	_, ok := st.Lookup("stale")
	assert.False(t, ok)
	_, ok = st.Lookup("fresh")
	assert.True(t, ok)
}
