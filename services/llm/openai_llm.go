// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to one OpenAI-compatible endpoint on behalf of a
// single role. Two instances (agent, judge) usually coexist, each with
// its own endpoint and sampling settings.
type OpenAIClient struct {
	client *openai.Client
	cfg    RoleConfig
	role   Role
	retry  RetryConfig
}

// NewOpenAIClient builds a client for the given role config.
func NewOpenAIClient(role Role, cfg RoleConfig) *OpenAIClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	slog.Info("initializing OpenAI-compatible client",
		"role", role, "model", cfg.Model, "base_url", apiCfg.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		role:   role,
		retry:  DefaultRetryConfig(),
	}
}

// Complete implements the ChatModel interface.
//
// The call is retried with capped exponential backoff inside the role's
// timeout; terminal failures surface as ErrModelTimeout or
// ErrModelUnavailable so callers can degrade deliberately.
func (o *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	var content string
	err := Retry(ctx, o.retry, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			slog.Warn("retrying completion", "role", o.role, "attempt", attempt)
		}
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", ErrModelUnavailable)
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("completion timed out", "role", o.role, "model", o.cfg.Model)
			return "", fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		slog.Error("completion failed", "role", o.role, "model", o.cfg.Model, "error", err)
		if errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrModelTimeout) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	return content, nil
}

// Embed implements the Embedder interface against the same endpoint.
//
// On terminal failure the sentinel empty vector is returned along with
// ErrModelUnavailable; callers must not cache the sentinel.
func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.cfg.EmbeddingModel),
		Input: []string{text},
	}

	var vector []float32
	err := Retry(ctx, o.retry, func(ctx context.Context, attempt int) error {
		resp, err := o.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("%w: no embedding returned", ErrModelUnavailable)
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		slog.Error("embedding failed", "role", o.role, "model", o.cfg.EmbeddingModel, "error", err)
		if errors.Is(err, ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	return vector, nil
}

var (
	_ ChatModel = (*OpenAIClient)(nil)
	_ Embedder  = (*OpenAIClient)(nil)
)
