package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/server"
	"github.com/jonathan/deliverable-builder/internal/server/ratelimit"
)

var (
	servePort       int
	serveStorageDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for running the deliverable pipeline and downloading validated artifacts.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to 8080)")
	serveCmd.Flags().StringVar(&serveStorageDir, "storage-dir", "", "Base directory for records and blobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("storage-dir") {
		cfg.StorageDir = serveStorageDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, b, err := buildPipeline(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		Pipeline:  p,
		App:       &cfg,
		RateLimit: ratelimit.LoadConfig(os.Getenv),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
