// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains tenant administration. These endpoints sit behind
// the admin token, not tenant API keys: tenants cannot create tenants.
package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// TenantHandler serves tenant provisioning for the operator.
type TenantHandler struct {
	store      *knowledge.Store
	adminToken string
}

// NewTenantHandler creates a TenantHandler. An empty adminToken
// disables the admin surface entirely.
func NewTenantHandler(store *knowledge.Store, adminToken string) *TenantHandler {
	return &TenantHandler{store: store, adminToken: adminToken}
}

// AdminAuth gates the admin routes on the X-Admin-Token header.
func (h *TenantHandler) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminToken == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		token := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// HandleCreate handles POST /admin/tenants. The response includes the
// generated API key so the operator can hand it to the tenant; tenant
// reads never expose it again.
func (h *TenantHandler) HandleCreate(c *gin.Context) {
	var req datatypes.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := h.store.CreateTenant(c.Request.Context(), req.Name, datatypes.ParseIndustry(req.Industry))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tenant"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       tenant.ID,
		"name":     tenant.Name,
		"industry": tenant.Industry,
		"status":   tenant.Status,
		"api_key":  tenant.APIKey,
	})
}

// HandleGet handles GET /admin/tenants/:id.
func (h *TenantHandler) HandleGet(c *gin.Context) {
	tenant, err := h.store.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}
