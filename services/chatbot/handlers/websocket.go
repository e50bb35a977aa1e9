// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the WebSocket chat channel used by the embedded
// widget. Each connection is one conversation: the first frame creates
// the session, later frames continue it, and disconnecting ends it.
package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/observability"
)

const (
	// wsWriteTimeout bounds a single frame write.
	wsWriteTimeout = 10 * time.Second

	// wsPongTimeout is how long the connection may stay silent before
	// it is considered dead. Ping interval derives from it.
	wsPongTimeout = 60 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The widget is embedded in customer sites, so cross-origin
	// upgrades are expected. Authentication happens via the API key,
	// not the origin.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsError is an error frame sent to the widget.
type wsError struct {
	Error string `json:"error"`
}

// wsConn serializes writes; gorilla allows only one concurrent writer
// and the ping loop runs beside the reply path.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(payload)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// HandleWebSocket handles GET /v1/chat/ws.
//
// # Description
//
// Upgrades the connection and serves chat frames until the client
// disconnects. Frames are ChatRequest JSON; replies are ChatResponse
// JSON. The session id is connection-scoped: the first reply carries
// it and later frames may omit it. On disconnect the in-memory window
// is dropped and the stored session is stamped ended.
func (h *ChatHandler) HandleWebSocket(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(datatypes.MaxMessageContentBytes + 4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	wc := &wsConn{conn: conn}
	stopPings := startPingLoop(wc)
	defer stopPings()

	ctx := c.Request.Context()
	sessionID := ""
	for {
		var req datatypes.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket read failed", "tenant_id", tenant.ID, "error", err)
			}
			break
		}

		if req.Channel == "" {
			req.Channel = datatypes.ChannelWidget
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			observability.RecordRequest("ws_chat", "error")
			writeFrame(wc, wsError{Error: err.Error()})
			continue
		}

		resp, status := h.respond(ctx, tenant, &req)
		if status != http.StatusOK {
			observability.RecordRequest("ws_chat", "error")
			writeFrame(wc, wsError{Error: "failed to generate response"})
			continue
		}
		sessionID = resp.SessionID
		observability.RecordRequest("ws_chat", "success")
		if !writeFrame(wc, resp) {
			break
		}
	}

	if sessionID != "" {
		h.sessions.Delete(sessionID)
		if err := h.store.EndSession(ctx, tenant.ID, sessionID); err != nil {
			slog.Warn("Failed to end session", "session_id", sessionID, "error", err)
		}
	}
}

// writeFrame writes one JSON frame. Returns false when the connection
// is no longer usable.
func writeFrame(wc *wsConn, payload any) bool {
	if err := wc.writeJSON(payload); err != nil {
		slog.Warn("WebSocket write failed", "error", err)
		return false
	}
	return true
}

// startPingLoop keeps the connection alive and returns a stop func.
func startPingLoop(wc *wsConn) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPongTimeout * 8 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wc.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
