// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the HTTP surface of the chatbot service.
//
// # Route Map
//
//	GET  /health                    liveness + store health
//	GET  /metrics                   Prometheus metrics
//	POST /v1/chat                   customer chat (REST)
//	GET  /v1/chat/ws                customer chat (WebSocket widget)
//	POST /v1/faqs                   create FAQ
//	GET  /v1/faqs                   list FAQs
//	GET  /v1/faqs/:id               read FAQ (counts a view)
//	PUT  /v1/faqs/:id               update FAQ
//	DELETE /v1/faqs/:id             delete FAQ
//	POST /v1/faqs/bulk              bulk import
//	GET  /v1/sessions               list sessions
//	GET  /v1/sessions/:id/messages  session transcript
//	POST /v1/sessions/:id/end       end session
//	GET  /v1/analytics/summary      dashboard aggregates
//	POST /admin/tenants             create tenant (admin token)
//	GET  /admin/tenants/:id         read tenant (admin token)
//
// Everything under /v1 requires a tenant API key and is rate limited
// per tenant. /admin requires the operator token.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/handlers"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
)

// Handlers bundles the handler set the router needs.
type Handlers struct {
	Chat      *handlers.ChatHandler
	FAQs      *handlers.FAQHandler
	Sessions  *handlers.SessionHandler
	Tenants   *handlers.TenantHandler
	Analytics *handlers.AnalyticsHandler
	Health    *handlers.HealthHandler
}

// Options carries the middleware configuration.
type Options struct {
	Authenticator middleware.TenantAuthenticator
	RateLimiter   *middleware.RateLimiter

	// ServiceName labels otelgin spans.
	ServiceName string
}

// Register attaches all routes to the router.
func Register(router *gin.Engine, h Handlers, opts Options) {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "chatbot"
	}
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/health", h.Health.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.TenantAuthMiddleware(opts.Authenticator))
	if opts.RateLimiter != nil {
		v1.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	v1.POST("/chat", h.Chat.HandleChat)
	v1.GET("/chat/ws", h.Chat.HandleWebSocket)

	v1.POST("/faqs", h.FAQs.HandleCreate)
	v1.GET("/faqs", h.FAQs.HandleList)
	v1.POST("/faqs/bulk", h.FAQs.HandleBulkImport)
	v1.GET("/faqs/:id", h.FAQs.HandleGet)
	v1.PUT("/faqs/:id", h.FAQs.HandleUpdate)
	v1.DELETE("/faqs/:id", h.FAQs.HandleDelete)

	v1.GET("/sessions", h.Sessions.HandleList)
	v1.GET("/sessions/:id/messages", h.Sessions.HandleMessages)
	v1.POST("/sessions/:id/end", h.Sessions.HandleEnd)

	v1.GET("/analytics/summary", h.Analytics.HandleSummary)

	admin := router.Group("/admin")
	admin.Use(h.Tenants.AdminAuth())
	admin.POST("/tenants", h.Tenants.HandleCreate)
	admin.GET("/tenants/:id", h.Tenants.HandleGet)
}
