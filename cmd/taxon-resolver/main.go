// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the taxon-resolver CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/taxon-resolver/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secret returns the secret value for key, or "" if it was not loaded.
func secret(key string) string {
	return loadedSecrets[key]
}

// rootCmd is the base command for the taxon-resolver CLI.
var rootCmd = &cobra.Command{
	Use:   "taxon-resolver",
	Short: "Resolve catalog taxa to knowledge-graph identifiers",
	Long: `taxon-resolver matches locally curated species records against a public
knowledge graph. It normalizes annotated scientific names, runs a cascade of
lookup strategies (exact match, fuzzy search with validation, model-assisted
lookup), keeps assignments unique across the catalog, and enriches matched
records with rank, parent taxon, conservation status, and article links.

Each stage is a subcommand: import loads catalog records, resolve runs the
matching pipeline, and status reports catalog progress.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./taxon-resolver.yaml or ~/.config/taxon-resolver/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "catalog", "base directory for catalog data (contains index/)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("taxon-resolver")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "taxon-resolver"))
		}
	}

	viper.SetEnvPrefix("TAXON_RESOLVER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
