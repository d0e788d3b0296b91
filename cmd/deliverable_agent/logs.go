package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/pipeline/steps"
)

var logsCmd = &cobra.Command{
	Use:   "logs JOB_ID",
	Short: "Show a job's log entries and derived progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var (
	logsStorageDir string
	logsJSON       bool
)

func init() {
	logsCmd.Flags().StringVar(&logsStorageDir, "storage-dir", "", "Base directory for records and blobs")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Print logs and progress as JSON")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("storage-dir") {
		cfg.StorageDir = logsStorageDir
	}

	var store db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.Connect(cmd.Context(), cfg.DatabaseURL)
	} else {
		store, err = db.NewFileStore(cfg.RecordsDir())
	}
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = store.Close() }()

	jobID := args[0]
	logs, err := store.ListJobLogs(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("failed to list job logs: %w", err)
	}
	if len(logs) == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	progress := steps.Summarize(jobID, logs)

	out := cmd.OutOrStdout()
	if logsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"job_id": jobID, "logs": logs, "progress": progress})
	}

	observability.NewPrinter(out).PrintJobLogs(logs)
	status := "in progress"
	if progress.Terminal != "" {
		status = string(progress.Terminal)
	}
	_, err = fmt.Fprintf(out, "Status: %s  completed=%v\n", status, progress.Completed)
	return err
}
