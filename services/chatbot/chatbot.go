// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chatbot provides the multi-tenant support chatbot service.
//
// This package contains the main Service type that coordinates all
// components: the sqlite knowledge store, optional Weaviate retrieval,
// the LLM client, the response pipeline, in-memory sessions, HTTP
// routing, and observability infrastructure.
//
// # Usage
//
//	cfg := chatbot.Config{Port: 8080, LLMBackend: "gemini"}
//	svc, err := chatbot.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/conversation"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/handlers"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/middleware"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/observability"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/pipeline"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/routes"
	"github.com/NekoyaJolly/AI-Chatbot/services/knowledge"
	"github.com/NekoyaJolly/AI-Chatbot/services/llm"
)

// Version is stamped at build time.
var Version = "dev"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the chatbot service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the service configuration. Zero values use defaults.
type Config struct {
	// Port for the HTTP server. Default: 8080.
	Port int

	// DBPath is the sqlite database location. Default: ./data/chatbot.db.
	DBPath string

	// LLMBackend selects the generation provider: gemini, openai, or
	// ollama. Default: gemini.
	LLMBackend string

	// WeaviateURL enables BM25 retrieval when set. Optional.
	WeaviateURL string

	// OTelEndpoint is the OTLP gRPC collector address. Tracing is
	// disabled when empty.
	OTelEndpoint string

	// EscalationConfigPath points to the YAML escalation tunables.
	// Built-in defaults are used when empty; when set, the file is
	// watched for changes.
	EscalationConfigPath string

	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string

	// DisableMetrics skips Prometheus metric registration. Metrics are
	// on by default.
	DisableMetrics bool

	// RequestsPerSecond / Burst tune per-tenant rate limiting.
	RequestsPerSecond float64
	Burst             int
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/chatbot.db"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "gemini"
	}
	return cfg
}

// =============================================================================
// Service Implementation
// =============================================================================

type service struct {
	config Config
	router *gin.Engine

	store     *knowledge.Store
	retriever knowledge.Retriever
	llmClient llm.LLMClient
	detector  *pipeline.Detector
	pipe      *pipeline.Pipeline
	sessions  *conversation.Store

	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New creates a chatbot Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies default configuration
//  2. Initializes OpenTelemetry tracing (when configured)
//  3. Registers Prometheus metrics
//  4. Opens the sqlite knowledge store
//  5. Wires retrieval (Weaviate BM25 over keyword search, or keyword
//     search alone)
//  6. Creates the LLM client for the configured backend
//  7. Loads escalation tunables and builds the pipeline
//  8. Starts the session sweeper and registers routes
//
// # Outputs
//
//   - Service: Ready-to-run chatbot service
//   - error: Non-nil if any required component fails to initialize
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if !s.config.DisableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	store, err := knowledge.NewStore(s.config.DBPath)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	s.store = store

	s.initRetriever()

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initDetector(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.pipe, err = pipeline.NewPipeline(s.store, s.retriever, s.llmClient, s.detector)
	if err != nil {
		s.cleanup()
		return nil, err
	}

	s.sessions = conversation.NewStore(conversation.DefaultStoreConfig())
	s.sessions.StartSweeper()

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chatbot server", "port", s.config.Port, "backend", s.config.LLMBackend)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chatbot-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRetriever wires FAQ retrieval. Weaviate is optional: when
// configured and reachable it fronts the keyword store, otherwise the
// keyword store serves alone.
func (s *service) initRetriever() {
	s.retriever = s.store

	if s.config.WeaviateURL == "" {
		slog.Info("Weaviate URL not configured, using keyword retrieval only")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wr, err := knowledge.NewWeaviateRetriever(ctx, s.config.WeaviateURL)
	if err != nil {
		slog.Warn("Weaviate initialization failed, using keyword retrieval only", "error", err)
		return
	}
	s.retriever = knowledge.NewFallbackRetriever(wr, s.store)
}

// initLLMClient creates the generation client for the configured
// backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "gemini":
		s.llmClient, err = llm.NewGeminiClient(context.Background())
		slog.Info("Using Gemini LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to gemini", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewGeminiClient(context.Background())
	}

	return err
}

// initDetector loads escalation tunables and starts the file watcher
// when a config path is set.
func (s *service) initDetector() error {
	cfg := pipeline.DefaultEscalationConfig()
	if s.config.EscalationConfigPath != "" {
		loaded, err := pipeline.LoadEscalationConfig(s.config.EscalationConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load escalation config: %w", err)
		}
		cfg = loaded
	}
	s.detector = pipeline.NewDetector(cfg)

	if s.config.EscalationConfigPath != "" {
		if err := s.detector.Watch(s.config.EscalationConfigPath); err != nil {
			slog.Warn("Escalation config watch failed, hot reload disabled", "error", err)
		}
	}
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()

	chatHandler := handlers.NewChatHandler(s.pipe, s.store, s.sessions)
	routes.Register(s.router, routes.Handlers{
		Chat:      chatHandler,
		FAQs:      handlers.NewFAQHandler(s.store),
		Sessions:  handlers.NewSessionHandler(s.store, s.sessions),
		Tenants:   handlers.NewTenantHandler(s.store, s.config.AdminToken),
		Analytics: handlers.NewAnalyticsHandler(s.store),
		Health:    handlers.NewHealthHandler(s.store, Version),
	}, routes.Options{
		Authenticator: middleware.NewAPIKeyAuthenticator(s.store),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: s.config.RequestsPerSecond,
			Burst:             s.config.Burst,
		}),
		ServiceName: "chatbot-service",
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.sessions != nil {
		s.sessions.Stop()
	}
	if s.detector != nil {
		if err := s.detector.Close(); err != nil {
			slog.Warn("Escalation watcher close error", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
