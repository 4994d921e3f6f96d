// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the gateway to external language and embedding
// models. Every backend speaks the OpenAI-compatible chat-completion
// contract; the agent and the judge may point at different endpoints
// with independent temperature, token, and timeout settings.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GenerationParams are per-call overrides for a completion request.
// Nil fields fall back to the role's configured defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatModel is the call contract for a chat-completion backend.
//
// Implementations must be safe for concurrent use: many experiment
// workers share one client.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error)
}

// Embedder turns text into a dense vector. A zero-length vector is the
// sentinel for "embedding unavailable"; callers must treat it as such
// and never cache it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Role identifies which caller a RoleConfig belongs to. The judge is
// configured colder than the agent.
type Role string

const (
	RoleAgent Role = "agent"
	RoleJudge Role = "judge"
)

// RoleConfig holds the per-role connection and sampling settings.
type RoleConfig struct {
	// BaseURL is an OpenAI-compatible chat-completion endpoint.
	BaseURL string

	// APIKey authenticates against BaseURL.
	APIKey string

	// Model is the model name sent with every request.
	Model string

	// EmbeddingModel is the model name used for embedding requests.
	// Only meaningful on the agent role.
	EmbeddingModel string

	Temperature float32
	MaxTokens   int

	// Timeout bounds a single call including retries.
	Timeout time.Duration
}

const (
	defaultAgentTemperature float32 = 0.7
	defaultJudgeTemperature float32 = 0.3
	defaultMaxTokens                = 1024
	defaultTimeout                  = 60 * time.Second
	defaultEmbeddingModel           = "text-embedding-3-small"
)

// ConfigFromEnv loads a RoleConfig from DRIFT_<ROLE>_* environment
// variables. The API key falls back to a container secret file, the
// same way the orchestrator reads its OpenAI key.
//
// Outputs:
//
//	RoleConfig - the resolved config.
//	error - non-nil when no API key can be found.
func ConfigFromEnv(role Role) (RoleConfig, error) {
	prefix := "DRIFT_" + strings.ToUpper(string(role)) + "_"

	cfg := RoleConfig{
		BaseURL:        os.Getenv(prefix + "API_BASE"),
		APIKey:         os.Getenv(prefix + "API_KEY"),
		Model:          os.Getenv(prefix + "MODEL"),
		EmbeddingModel: os.Getenv(prefix + "EMBEDDING_MODEL"),
		Temperature:    defaultAgentTemperature,
		MaxTokens:      defaultMaxTokens,
		Timeout:        defaultTimeout,
	}
	if role == RoleJudge {
		cfg.Temperature = defaultJudgeTemperature
	}

	if cfg.APIKey == "" {
		secretPath := "/run/secrets/" + string(role) + "_api_key"
		keyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			cfg.APIKey = strings.TrimSpace(string(keyBytes))
			slog.Info("read API key from container secret", "role", role)
		} else {
			return cfg, fmt.Errorf("%sAPI_KEY not set and secret %s not found", prefix, secretPath)
		}
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
		slog.Warn("model not set, using default", "role", role, "model", cfg.Model)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}

	if v := os.Getenv(prefix + "TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Temperature = float32(f)
		}
	}
	if v := os.Getenv(prefix + "MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv(prefix + "TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}

	return cfg, nil
}
