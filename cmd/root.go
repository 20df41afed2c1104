// Package cmd defines the CLI commands for the jobs-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs-crawler",
		Short: "Resilient job postings ingestion pipeline",
		Long: `jobs-crawler ingests job postings from structured APIs, syndication
feeds, and scraped aggregator pages, deduplicates them across sources, and
maintains a single enriched canonical record per posting.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd(), newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Local development reads secrets from a .env file; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
