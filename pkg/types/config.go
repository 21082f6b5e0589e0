// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "taxon-resolver/0.1 (mailto:ops@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GraphConfig holds settings for the external knowledge-graph client.
type GraphConfig struct {
	HTTPConfig `yaml:",inline"`

	// SearchLimit is the number of hits requested per free-text entity
	// search (default 10).
	SearchLimit int `json:"search_limit" yaml:"search_limit"`

	// MaxRetries bounds retry attempts per call on transient failures
	// (default 4).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// AIConfig holds settings for the model-assisted lookup backend.
type AIConfig struct {
	// Provider selects the backend: "claude" or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries bounds retry attempts on transient API failures (default 4).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ScoreConfig holds the confidence scores attached to successful matches.
// Only the ordering matters to downstream consumers: exact validation beats
// fuzzy-scientific, which beats fuzzy-vernacular, which beats model-assisted.
type ScoreConfig struct {
	Exact           int `json:"exact" yaml:"exact"`
	FuzzyScientific int `json:"fuzzy_scientific" yaml:"fuzzy_scientific"`
	FuzzyVernacular int `json:"fuzzy_vernacular" yaml:"fuzzy_vernacular"`
	Model           int `json:"model" yaml:"model"`
}

// DefaultScores returns the standard score set.
func DefaultScores() ScoreConfig {
	return ScoreConfig{Exact: 95, FuzzyScientific: 90, FuzzyVernacular: 85, Model: 80}
}

// ResolveConfig holds settings for a resolution batch run.
type ResolveConfig struct {
	// Concurrency is the worker pool size (default 20).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Overwrite allows enrichment to replace populated local fields.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// Scores configures match confidence values.
	Scores ScoreConfig `json:"scores" yaml:"scores"`
}

// RecordFilter selects which unresolved records a run processes. Supplied
// by the caller alongside the catalog.
type RecordFilter struct {
	ExcludeDomesticated bool `json:"exclude_domesticated" yaml:"exclude_domesticated"`
	MinObservations     int  `json:"min_observations" yaml:"min_observations"`
	Limit               int  `json:"limit" yaml:"limit"`
}

// CatalogConfig holds settings for the catalog store.
type CatalogConfig struct {
	// DataDir is the base directory for the catalog (contains index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Graph   GraphConfig   `json:"graph" yaml:"graph"`
	AI      AIConfig      `json:"ai" yaml:"ai"`
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
}
