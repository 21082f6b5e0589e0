// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/taxon-resolver/internal/catalog"
	"github.com/pdiddy/taxon-resolver/internal/collide"
	"github.com/pdiddy/taxon-resolver/internal/enrich"
	"github.com/pdiddy/taxon-resolver/internal/llm"
	"github.com/pdiddy/taxon-resolver/internal/lookup"
	"github.com/pdiddy/taxon-resolver/internal/orchestrate"
	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "taxon-resolver/0.1"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Match unresolved catalog records to graph identifiers",
	Long: `Resolve runs the matching pipeline over every unresolved catalog record:
name normalization, the lookup cascade, collision handling, and enrichment.
Each record commits independently, so an interrupted run can simply be
rerun; already-decided records are never reprocessed.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Int("concurrency", 0, "worker pool size (default 20, max 30)")
	resolveCmd.Flags().Int("limit", 0, "process at most N records (0 = all)")
	resolveCmd.Flags().Bool("overwrite", false, "let enrichment replace populated local fields")
	resolveCmd.Flags().Bool("exclude-domesticated", false, "skip records flagged as domesticated")
	resolveCmd.Flags().Int("min-observations", 0, "skip records with fewer observations")
	resolveCmd.Flags().String("ai-provider", "", "model backend: claude or openai (default claude)")
	resolveCmd.Flags().String("ai-model", "", "model identifier for the lookup backend")
	resolveCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	store, err := catalog.NewStore(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	graph := wikidata.New(cfg.Graph)

	ai, err := llm.New(cfg.AI)
	if err != nil {
		return err
	}

	runner := &orchestrate.Runner{
		Store:    store,
		Matcher:  lookup.NewCascade(graph, ai, cfg.Resolve.Scores, cfg.Graph.SearchLimit, cfg.AI.MaxRetries, os.Stdout),
		Collider: &collide.Resolver{Graph: graph},
		Enricher: &enrich.Fetcher{Graph: graph},
		Cfg:      cfg.Resolve,
		Log:      os.Stdout,
	}

	filter := types.RecordFilter{}
	filter.ExcludeDomesticated, _ = cmd.Flags().GetBool("exclude-domesticated")
	filter.MinObservations, _ = cmd.Flags().GetInt("min-observations")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	tally, err := runner.Run(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("run aborted after %d record(s): %w", tally.Total(), err)
	}
	return nil
}

// pipelineConfig assembles the stage configurations from flags and secrets.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	userAgent := defaultUserAgent
	if email := secret("wikidata-contact-email"); email != "" {
		userAgent = fmt.Sprintf("%s (mailto:%s)", defaultUserAgent, email)
	}

	provider, _ := cmd.Flags().GetString("ai-provider")
	model, _ := cmd.Flags().GetString("ai-model")
	apiKey := secret("anthropic-api-key")
	if provider == "openai" {
		apiKey = secret("openai-api-key")
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	return types.PipelineConfig{
		Graph: types.GraphConfig{
			HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: userAgent},
		},
		AI: types.AIConfig{
			Provider: provider,
			Model:    model,
			APIKey:   apiKey,
		},
		Resolve: types.ResolveConfig{
			Concurrency: concurrency,
			Overwrite:   overwrite,
			Scores:      types.DefaultScores(),
		},
		Catalog: types.CatalogConfig{DataDir: dataDir},
	}
}
