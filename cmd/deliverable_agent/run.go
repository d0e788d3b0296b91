package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/config"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/schemas"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full deliverable pipeline end-to-end",
	Long: `Orchestrates one deliverable run: ingest -> generate -> render -> validate(docx) -> validate(pdf).

The material is read from --materials-dir when set, otherwise downloaded through
the configured download_url_template. Use --payload to replay a deliverable JSON
file instead of calling the model.`,
	RunE: runPipelineCmd,
}

var (
	runAssignment   string
	runFile         string
	runPrompt       string
	runJobID        string
	runMaterialsDir string
	runPayload      string
	runStorageDir   string
	runAPIKey       string
	runModel        string
	runDatabaseURL  string
	runUseBrowser   bool
	runVerbose      bool
	runJSON         bool
)

func init() {
	runCommand.Flags().StringVarP(&runAssignment, "assignment", "a", "", "Assignment id (required)")
	runCommand.Flags().StringVarP(&runFile, "file", "f", "", "External file id of the material (required)")
	runCommand.Flags().StringVarP(&runPrompt, "prompt", "p", "", "Instructions passed to the generator")
	runCommand.Flags().StringVar(&runJobID, "job-id", "", "Job id (generated when empty)")
	runCommand.Flags().StringVar(&runMaterialsDir, "materials-dir", "", "Read materials from this directory instead of the download API")
	runCommand.Flags().StringVar(&runPayload, "payload", "", "Replay this deliverable JSON file instead of calling the model")
	runCommand.Flags().StringVar(&runStorageDir, "storage-dir", "", "Base directory for records and blobs")
	runCommand.Flags().StringVar(&runModel, "model", "", "Gemini model name")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Re-render thin HTML materials with a headless browser (requires Chrome)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the run result as JSON")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for record persistence
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

// runConfig applies the run flags that were explicitly set over the loaded config.
func runConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("materials-dir") {
		cfg.MaterialsDir = runMaterialsDir
		cfg.DownloadURLTemplate = ""
	}
	if flags.Changed("payload") {
		cfg.PayloadFile = runPayload
	}
	if flags.Changed("storage-dir") {
		cfg.StorageDir = runStorageDir
	}
	if flags.Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if flags.Changed("model") {
		cfg.Model = runModel
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if flags.Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if flags.Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if runAssignment == "" || runFile == "" {
		return fmt.Errorf("--assignment and --file are required")
	}

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, b, err := buildPipeline(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	jobID := runJobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	out := cmd.OutOrStdout()
	in := pipeline.RunInput{
		JobID:          jobID,
		AssignmentID:   runAssignment,
		ExternalFileID: runFile,
		Prompt:         runPrompt,
	}
	if cfg.Verbose && !runJSON {
		in.OnProgress = func(event pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(out, "[%s] %s\n", event.Stage, event.Message)
		}
	}

	result, err := p.Run(ctx, in)
	if err != nil {
		if logs, _, statusErr := p.JobStatus(ctx, jobID); statusErr == nil && cfg.Verbose {
			observability.NewPrinter(out).PrintJobLogs(logs)
		}
		return fmt.Errorf("pipeline failed: %w", err)
	}

	return printRunResult(out, result, runJSON)
}

func printRunResult(out io.Writer, result *pipeline.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printer := observability.NewPrinter(out)
	printer.PrintMaterial(result.Material)
	if result.Deliverable != nil {
		if d, err := schemas.ValidateDeliverable(result.Deliverable.Payload); err == nil {
			printer.PrintDeliverable(d)
		}
	}
	printer.PrintArtifacts(result.Docx, result.PDF)
	_, err := fmt.Fprintf(out, "Job %s finished\n", result.JobID)
	return err
}
