// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/taxon-resolver/internal/catalog"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load catalog records from a YAML file",
	Long: `Import reads a YAML list of taxon records and upserts them into the
catalog database. Records without a status start unresolved. Re-importing
a file updates names and attributes without touching resolution state
handled elsewhere.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report catalog progress by match status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.ImportYAML(context.Background(), args[0], os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d record(s) failed import", summary.Failed)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.Counts(context.Background())
	if err != nil {
		return err
	}

	total := 0
	order := []types.MatchStatus{
		types.StatusAutoMatched, types.StatusCollision,
		types.StatusUnresolved, types.StatusNone,
	}
	for _, status := range order {
		fmt.Printf("%-12s  %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("%-12s  %d\n", "total", total)
	return nil
}

func openStore(cmd *cobra.Command) (*catalog.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return catalog.NewStore(types.CatalogConfig{DataDir: dataDir})
}
