// Package main provides the deliverable_agent CLI: run the pipeline, render and
// validate deliverables offline, inspect job logs, and serve the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "deliverable_agent",
	Short: "Deliverable artifact pipeline",
	Long: `deliverable_agent turns an instructor's course material into a generated
deliverable: it ingests the source file, asks the model for a schema-checked
deliverable JSON, renders DOCX and PDF artifacts, and validates both before
they are offered for download.

Configuration can be loaded from a JSON file using --config. Environment
variables fill values the file leaves empty; command-line flags override both.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
