// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command chatbot starts the multi-tenant support chatbot HTTP server.
//
// Configuration comes from environment variables (a .env file is
// loaded when present):
//
//   - CHATBOT_PORT: HTTP server port (default: 8080)
//   - CHATBOT_DB_PATH: sqlite database path (default: ./data/chatbot.db)
//   - LLM_BACKEND_TYPE: gemini, openai, or ollama (default: gemini)
//   - GEMINI_API_KEY / OPENAI_API_KEY / OLLAMA_BASE_URL: provider credentials
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - ESCALATION_CONFIG_PATH: YAML escalation tunables (optional, hot reloaded)
//   - ADMIN_TOKEN: operator token for /admin routes (empty disables them)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_DIR: enables file logging when set
//
// # Usage
//
//	go build -o chatbot ./cmd/chatbot
//	./chatbot serve
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/NekoyaJolly/AI-Chatbot/pkg/logging"
	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Multi-tenant AI support chatbot server",
	}
	rootCmd.AddCommand(newServeCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is the normal containerized case.
			_ = godotenv.Load()

			logger := logging.New(logging.Config{
				Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
				LogDir:  os.Getenv("LOG_DIR"),
				Service: "chatbot",
			})
			defer logger.Close()
			logger.SetAsDefault()

			cfg := chatbot.Config{
				Port:                 getEnvInt("CHATBOT_PORT", 8080),
				DBPath:               getEnvString("CHATBOT_DB_PATH", "./data/chatbot.db"),
				LLMBackend:           getEnvString("LLM_BACKEND_TYPE", "gemini"),
				WeaviateURL:          os.Getenv("WEAVIATE_SERVICE_URL"),
				OTelEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
				EscalationConfigPath: os.Getenv("ESCALATION_CONFIG_PATH"),
				AdminToken:           os.Getenv("ADMIN_TOKEN"),
			}

			logger.Info("Starting chatbot",
				"port", cfg.Port,
				"llm_backend", cfg.LLMBackend,
				"db_path", cfg.DBPath,
			)

			svc, err := chatbot.New(cfg)
			if err != nil {
				log.Fatalf("Failed to create chatbot service: %v", err)
			}
			return svc.Run()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(chatbot.Version)
		},
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
