// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package describe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrDescriberUnavailable is returned when no API credentials are
// configured. Callers fall back to showing the raw path.
var ErrDescriberUnavailable = errors.New("relationship describer is not configured")

const systemPrompt = `You are a genealogy expert. Given a relationship path between two
people in a family tree, respond with ONLY a JSON object of the form
{"relationshipName": "...", "explanation": "..."} where relationshipName
is the precise kinship term for person2 relative to person1 (for example
"maternal great-aunt" or "second cousin") and explanation is one short
sentence walking the path. Do not add any other text.`

// OpenAIDescriber names relationship paths via the OpenAI chat API.
//
// Thread Safety: safe for concurrent use.
type OpenAIDescriber struct {
	client  *openai.Client
	model   string
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewOpenAIDescriber builds a describer from the environment.
//
// Description:
//
//	Reads OPENAI_API_KEY (falling back to the container secret file) and
//	OPENAI_MODEL. Requests are rate limited to one per second with a
//	small burst so a tree-browsing user cannot fan out unbounded API
//	spend.
//
// Outputs:
//
//	*OpenAIDescriber - Ready to use.
//	error - ErrDescriberUnavailable when no key is present.
func NewOpenAIDescriber(logger *slog.Logger) (*OpenAIDescriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err != nil {
			logger.Warn("OPENAI_API_KEY not set and secret not found; describer disabled", "path", secretPath)
			return nil, ErrDescriberUnavailable
		}
		apiKey = strings.TrimSpace(string(apiKeyBytes))
		logger.Info("Read the OpenAI API key from container secrets")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		logger.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	logger.Info("Initializing relationship describer", "model", model)
	return &OpenAIDescriber{
		client:  openai.NewClient(apiKey),
		model:   model,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}, nil
}

// Describe implements Describer.
func (d *OpenAIDescriber) Describe(ctx context.Context, req Request) (*Description, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("describer rate limit wait: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal describer request: %w", err)
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		d.logger.Error("OpenAI API call failed", "error", err)
		return nil, fmt.Errorf("describe relationship: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("describe relationship: model returned no choices")
	}

	content := resp.Choices[0].Message.Content
	desc, err := parseDescription(content)
	if err != nil {
		d.logger.Warn("describer returned non-JSON content, using raw text", "error", err)
		return &Description{
			RelationshipName: "Relative",
			Explanation:      strings.TrimSpace(content),
		}, nil
	}
	return desc, nil
}

// parseDescription extracts the JSON object from model output. Models
// sometimes wrap JSON in markdown fences or surrounding prose.
func parseDescription(content string) (*Description, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	var desc Description
	if err := json.Unmarshal([]byte(content[start:end+1]), &desc); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if desc.RelationshipName == "" {
		return nil, fmt.Errorf("model output missing relationshipName")
	}
	return &desc, nil
}
