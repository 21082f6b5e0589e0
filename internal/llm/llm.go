// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides clients for the generative reasoning services used
// by the model-assisted lookup strategy. Each provider implements the same
// one-shot completion interface; errors are classified into the shared
// transient/auth taxonomy so callers can retry or abort uniformly.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Client performs a single prompt completion.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New selects a provider from the configuration. An empty provider
// defaults to Claude.
func New(cfg types.AIConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, ""), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}
}
