// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the chatbot service.
//
// This package contains middleware for tenant authentication and
// per-tenant rate limiting.
//
// # Authentication Flow
//
// The auth middleware extracts an API key from the X-Api-Key header
// (or "Authorization: Bearer <key>"), resolves it to a tenant using
// the configured TenantAuthenticator, and stores the tenant in the Gin
// context for downstream handlers. Every handler then works under that
// tenant's id; no request body or query parameter can switch tenants.
//
//	Request
//	   │
//	   ▼
//	TenantAuthMiddleware
//	   │
//	   ├─► Extract key from "X-Api-Key" / "Authorization: Bearer <key>"
//	   │
//	   ├─► authenticator.Authenticate(ctx, key)
//	   │
//	   └─► Store *Tenant in context
//	           │
//	           ▼
//	       Handler (retrieves via GetTenant)
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// ErrUnauthorized is returned by authenticators for unknown or
// suspended credentials.
var ErrUnauthorized = errors.New("unauthorized")

// tenantKey is the context key for storing the authenticated tenant.
const tenantKey = "chatbot_tenant"

// TenantAuthenticator resolves an API key to the tenant it belongs to.
//
// Implementations must return ErrUnauthorized (possibly wrapped) for
// unknown keys and for tenants that exist but may not use the API.
type TenantAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*datatypes.Tenant, error)
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetTenant stores the authenticated tenant in the Gin context.
func SetTenant(c *gin.Context, tenant *datatypes.Tenant) {
	c.Set(tenantKey, tenant)
}

// GetTenant retrieves the authenticated tenant from the Gin context.
// Returns nil if the request was not authenticated.
func GetTenant(c *gin.Context) *datatypes.Tenant {
	if v, exists := c.Get(tenantKey); exists {
		if tenant, ok := v.(*datatypes.Tenant); ok {
			return tenant
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// TenantAuthMiddleware creates a Gin middleware that authenticates
// requests and pins them to a tenant.
//
// # Description
//
// Extracts the API key, resolves it via the authenticator, and stores
// the tenant in the context. Requests without a resolvable key are
// rejected with 401; suspended tenants with 403.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func TenantAuthMiddleware(authenticator TenantAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		tenant, err := authenticator.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}
		if tenant.Status != datatypes.TenantStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "tenant suspended",
			})
			return
		}

		SetTenant(c, tenant)
		c.Next()
	}
}

// extractAPIKey reads the API key from the X-Api-Key header, falling
// back to "Authorization: Bearer <key>". Returns "" when absent.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-Api-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// =============================================================================
// Authenticators
// =============================================================================

// tenantByAPIKey is the store-side lookup the key authenticator needs.
type tenantByAPIKey interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (*datatypes.Tenant, error)
}

// APIKeyAuthenticator resolves keys against the tenant store.
type APIKeyAuthenticator struct {
	store tenantByAPIKey
}

var _ TenantAuthenticator = (*APIKeyAuthenticator)(nil)

// NewAPIKeyAuthenticator creates an authenticator backed by the tenant
// store.
func NewAPIKeyAuthenticator(store tenantByAPIKey) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{store: store}
}

// Authenticate implements TenantAuthenticator.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, apiKey string) (*datatypes.Tenant, error) {
	tenant, err := a.store.GetTenantByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return tenant, nil
}

// NopAuthenticator accepts every key and returns a fixed tenant. Used
// in development and tests where no tenant store is wired.
type NopAuthenticator struct {
	Tenant *datatypes.Tenant
}

var _ TenantAuthenticator = (*NopAuthenticator)(nil)

// Authenticate implements TenantAuthenticator.
func (a *NopAuthenticator) Authenticate(_ context.Context, _ string) (*datatypes.Tenant, error) {
	if a.Tenant != nil {
		return a.Tenant, nil
	}
	return &datatypes.Tenant{
		ID:       "local-tenant",
		Name:     "お店",
		Industry: datatypes.IndustryGeneral,
		Status:   datatypes.TenantStatusActive,
	}, nil
}
