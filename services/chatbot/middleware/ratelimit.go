// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains per-tenant request rate limiting.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig tunes the per-tenant token bucket.
type RateLimiterConfig struct {
	// RequestsPerSecond refills each tenant's bucket. Default: 5.
	RequestsPerSecond float64

	// Burst is the bucket capacity. Default: 10.
	Burst int
}

// RateLimiter hands out one token bucket per tenant.
//
// Buckets are created lazily and never expire; tenant counts are small
// enough that the map stays bounded in practice.
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter. Zero-valued config fields fall
// back to defaults.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the tenant may proceed with one request now.
func (rl *RateLimiter) Allow(tenantID string) bool {
	rl.mu.Lock()
	bucket, ok := rl.buckets[tenantID]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
		rl.buckets[tenantID] = bucket
	}
	rl.mu.Unlock()
	return bucket.Allow()
}

// RateLimitMiddleware rejects requests exceeding the tenant's budget
// with 429. Must run after TenantAuthMiddleware; unauthenticated
// requests are limited under a shared bucket.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "anonymous"
		if tenant := GetTenant(c); tenant != nil {
			key = tenant.ID
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
