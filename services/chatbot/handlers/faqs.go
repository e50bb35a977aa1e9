// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the FAQ management endpoints consumed by the
// tenant dashboard.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
)

// FAQHandler serves FAQ CRUD and bulk import for the authenticated
// tenant. Every operation is scoped to that tenant; ids belonging to
// other tenants read as not found.
type FAQHandler struct {
	store *knowledge.Store
}

// NewFAQHandler creates a FAQHandler.
func NewFAQHandler(store *knowledge.Store) *FAQHandler {
	return &FAQHandler{store: store}
}

// HandleCreate handles POST /v1/faqs.
func (h *FAQHandler) HandleCreate(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req datatypes.CreateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	faq, err := h.store.CreateFAQ(c.Request.Context(), tenant.ID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create FAQ"})
		return
	}
	c.JSON(http.StatusCreated, faq)
}

// HandleGet handles GET /v1/faqs/:id. Reading an FAQ counts as a view.
func (h *FAQHandler) HandleGet(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	faq, err := h.store.GetFAQ(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	_ = h.store.IncrementViewCount(c.Request.Context(), tenant.ID, faq.ID)
	c.JSON(http.StatusOK, faq)
}

// HandleList handles GET /v1/faqs with limit/offset paging.
func (h *FAQHandler) HandleList(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	faqs, err := h.store.ListFAQs(c.Request.Context(), tenant.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list FAQs"})
		return
	}
	if faqs == nil {
		faqs = []datatypes.FAQ{}
	}
	c.JSON(http.StatusOK, gin.H{"items": faqs, "limit": limit, "offset": offset})
}

// HandleUpdate handles PUT /v1/faqs/:id.
func (h *FAQHandler) HandleUpdate(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req datatypes.UpdateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	faq, err := h.store.UpdateFAQ(c.Request.Context(), tenant.ID, c.Param("id"), &req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, faq)
}

// HandleDelete handles DELETE /v1/faqs/:id.
func (h *FAQHandler) HandleDelete(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.store.DeleteFAQ(c.Request.Context(), tenant.ID, c.Param("id")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleBulkImport handles POST /v1/faqs/bulk.
//
// Rows are imported independently: a bad row is reported in the result
// and the rest still land.
func (h *FAQHandler) HandleBulkImport(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req datatypes.BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := datatypes.BulkImportResult{}
	for i := range req.Items {
		if _, err := h.store.CreateFAQ(c.Request.Context(), tenant.ID, &req.Items[i]); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		result.Imported++
	}
	c.JSON(http.StatusOK, result)
}

// respondStoreError maps store errors to HTTP statuses. Cross-tenant
// ids deliberately read as 404, not 403, so tenants cannot probe for
// other tenants' record ids.
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, knowledge.ErrNotFound) || errors.Is(err, knowledge.ErrTenantMismatch) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// queryInt reads an integer query parameter with a default.
func queryInt(c *gin.Context, name string, defaultVal int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return defaultVal
	}
	return val
}
