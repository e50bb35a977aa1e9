// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the chatbot.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the response
// pipeline. Metrics include:
//   - Request counters (by endpoint, status)
//   - Pipeline latency histograms and confidence distribution
//   - Escalation and fallback counters (by tenant)
//   - Token usage and active session gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "chatbot"

// Subsystem for pipeline metrics
const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for the response pipeline.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring pipeline
// behavior per tenant. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RequestsTotal counts chat requests by endpoint and status.
	// Labels: endpoint (chat, ws_chat), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// PipelineDurationSeconds measures end-to-end pipeline latency.
	// Labels: status (success, fallback)
	PipelineDurationSeconds *prometheus.HistogramVec

	// ConfidenceScore observes the confidence of each generated answer.
	Confidence prometheus.Histogram

	// EscalationsTotal counts escalated responses.
	// Labels: tenant, trigger (keyword, low_confidence)
	EscalationsTotal *prometheus.CounterVec

	// FallbacksTotal counts responses served without the LLM.
	// Labels: tenant
	FallbacksTotal *prometheus.CounterVec

	// TokensTotal counts LLM tokens by direction.
	// Labels: direction (input, output)
	TokensTotal *prometheus.CounterVec

	// ActiveSessions tracks in-memory conversation sessions.
	ActiveSessions prometheus.Gauge
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics(). Recording helpers are no-ops while nil,
// so tests can exercise the pipeline without registering metrics.
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		PipelineDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end response pipeline duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),

		Confidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "confidence",
				Help:      "Confidence score distribution of generated answers",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		EscalationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "escalations_total",
				Help:      "Total escalated responses by tenant and trigger",
			},
			[]string{"tenant", "trigger"},
		),

		FallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "fallbacks_total",
				Help:      "Total responses served without the LLM",
			},
			[]string{"tenant"},
		),

		TokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "tokens_total",
				Help:      "Total LLM tokens by direction",
			},
			[]string{"direction"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_sessions",
				Help:      "Number of in-memory conversation sessions",
			},
		),
	}
	return DefaultMetrics
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordRequest records one chat request outcome.
func RecordRequest(endpoint, status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordPipeline records one pipeline run.
func RecordPipeline(durationSeconds, confidence float64, fallback bool) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if fallback {
		status = "fallback"
	}
	DefaultMetrics.PipelineDurationSeconds.WithLabelValues(status).Observe(durationSeconds)
	DefaultMetrics.Confidence.Observe(confidence)
}

// RecordEscalation records an escalated response.
func RecordEscalation(tenantID, trigger string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.EscalationsTotal.WithLabelValues(tenantID, trigger).Inc()
}

// RecordFallback records a response served without the LLM.
func RecordFallback(tenantID string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.FallbacksTotal.WithLabelValues(tenantID).Inc()
}

// RecordTokens records LLM token usage.
func RecordTokens(inputTokens, outputTokens int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	DefaultMetrics.TokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// SetActiveSessions updates the in-memory session gauge.
func SetActiveSessions(n int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveSessions.Set(float64(n))
}
