// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains FAQ (knowledge record) management types.
package datatypes

import "time"

// =============================================================================
// FAQ Model
// =============================================================================

// FAQ is a stored question/answer record owned by exactly one tenant.
//
// # Description
//
// FAQs are the knowledge the pipeline retrieves against. TenantID is
// never crossed: retrieval for tenant A must not see tenant B's
// records under any input. ViewCount feeds the retrieval ordering
// (popular records first) and the analytics top-FAQ list.
type FAQ struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	IsActive  bool      `json:"is_active"`
	ViewCount int       `json:"view_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// FAQ Management Requests
// =============================================================================

// CreateFAQRequest is the body for POST /v1/faqs.
type CreateFAQRequest struct {
	Question string `json:"question" validate:"required,maxbytes"`
	Answer   string `json:"answer" validate:"required,maxbytes"`
	Category string `json:"category" validate:"omitempty,max=100"`
}

// Validate validates the CreateFAQRequest fields.
func (r *CreateFAQRequest) Validate() error {
	return chatValidate.Struct(r)
}

// UpdateFAQRequest is the body for PUT /v1/faqs/:id.
// Nil pointers mean "leave unchanged".
type UpdateFAQRequest struct {
	Question *string `json:"question" validate:"omitempty,maxbytes"`
	Answer   *string `json:"answer" validate:"omitempty,maxbytes"`
	Category *string `json:"category" validate:"omitempty,max=100"`
	IsActive *bool   `json:"is_active"`
}

// Validate validates the UpdateFAQRequest fields.
func (r *UpdateFAQRequest) Validate() error {
	return chatValidate.Struct(r)
}

// BulkImportRequest is the body for POST /v1/faqs/bulk.
//
// The dashboard parses CSV client-side and submits rows here; this
// service only sees structured entries.
type BulkImportRequest struct {
	Items []CreateFAQRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// Validate validates the BulkImportRequest fields.
func (r *BulkImportRequest) Validate() error {
	return chatValidate.Struct(r)
}

// BulkImportResult reports per-row outcomes of a bulk import.
type BulkImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}
