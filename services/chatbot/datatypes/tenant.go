// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the chatbot service.
//
// This file contains the tenant model and the closed set of business
// category codes used for prompt selection.
package datatypes

import "time"

// =============================================================================
// Industry Codes
// =============================================================================

// Industry is a business-category code for a tenant.
//
// # Description
//
// Industry is a closed enumeration. The pipeline selects a prompt
// template pair by industry; codes outside the known set resolve to
// IndustryGeneral. Keeping this a named type (rather than bare strings)
// forces every dispatch site through the same set of constants.
type Industry string

const (
	// IndustryPetShop is the pet retail category.
	IndustryPetShop Industry = "pet_shop"

	// IndustryBeautySalon is the beauty/hair salon category.
	IndustryBeautySalon Industry = "beauty_salon"

	// IndustryVeterinary is the veterinary clinic category.
	IndustryVeterinary Industry = "veterinary"

	// IndustryGeneral is the fallback category for tenants without a
	// recognized industry code.
	IndustryGeneral Industry = "general"
)

// ParseIndustry normalizes a raw industry code.
//
// Unknown or empty codes resolve to IndustryGeneral so a tenant with a
// miswritten category still gets a working prompt.
func ParseIndustry(raw string) Industry {
	switch Industry(raw) {
	case IndustryPetShop, IndustryBeautySalon, IndustryVeterinary:
		return Industry(raw)
	default:
		return IndustryGeneral
	}
}

// =============================================================================
// Tenant Model
// =============================================================================

// Tenant statuses.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant identifies a customer organization on the platform.
//
// # Description
//
// Tenant is the unit of data isolation: FAQ retrieval, sessions and
// analytics are all scoped by Tenant.ID. A tenant is created at signup
// via the admin API and is read-only from the pipeline's perspective
// (immutable during a single chat turn).
//
// # Fields
//
//   - ID: Unique identifier (UUID v4).
//   - Name: Display name, substituted into the {shopName} placeholder.
//   - Industry: Business category driving prompt selection.
//   - Status: Operating status ("active", "suspended").
//   - APIKey: Secret used by the widget and dashboard to authenticate.
//     Never serialized in API responses.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Industry  Industry  `json:"industry"`
	Status    string    `json:"status"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTenantRequest is the body for POST /v1/tenants.
type CreateTenantRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Industry string `json:"industry" validate:"omitempty,oneof=pet_shop beauty_salon veterinary general"`
}

// Validate validates the CreateTenantRequest fields.
func (r *CreateTenantRequest) Validate() error {
	return chatValidate.Struct(r)
}
