package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/deliverable-builder/internal/config"
	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/fetch"
	"github.com/jonathan/deliverable-builder/internal/ingestion"
	"github.com/jonathan/deliverable-builder/internal/llm"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/validation"
)

// browserTimeout bounds a single headless render of an HTML material
const browserTimeout = 30 * time.Second

// loadConfig layers the --config file over environment values over defaults.
// Callers apply flag overrides to the result and then call Validate.
func loadConfig() (config.Config, error) {
	var file *config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		file = loaded
	}
	return config.Resolve(file), nil
}

// backends holds the stores a command opened; Close releases all of them.
type backends struct {
	records db.Store
	objects *objectstore.Store
	closers []io.Closer
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openBackends opens the record store (Postgres or the file envelope) and the
// object store (GCS or the local directory) named by cfg.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	if cfg.DatabaseURL != "" {
		store, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.records = store
	} else {
		store, err := db.NewFileStore(cfg.RecordsDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		b.records = store
	}
	b.closers = append(b.closers, b.records)

	var backend objectstore.Backend
	if cfg.GCSBucket != "" {
		gcs, err := objectstore.NewGCSBackend(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to open bucket %s: %w", cfg.GCSBucket, err)
		}
		b.closers = append(b.closers, gcs)
		backend = gcs
	} else {
		local, err := objectstore.NewLocalBackend(cfg.ObjectsDir())
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to open object store: %w", err)
		}
		backend = local
	}
	b.objects = objectstore.New(backend)

	return b, nil
}

// newDownloader picks the material source: a local directory or the LMS API.
func newDownloader(cfg *config.Config) (ingestion.Downloader, error) {
	switch {
	case cfg.MaterialsDir != "":
		return &ingestion.DirDownloader{Dir: cfg.MaterialsDir}, nil
	case cfg.DownloadURLTemplate != "":
		return ingestion.NewHTTPDownloader(cfg.DownloadURLTemplate, cfg.DownloadToken)
	default:
		return nil, fmt.Errorf("either --materials-dir or a download_url_template is required")
	}
}

// newGenerator replays PayloadFile when set, otherwise calls Gemini.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.DeliverableGenerator, error) {
	if cfg.PayloadFile != "" {
		return llm.NewStaticGeneratorFromFile(cfg.PayloadFile)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable, --api-key or --payload is required")
	}
	genCfg := llm.DefaultConfig()
	if cfg.Model != "" {
		genCfg = genCfg.WithModel(cfg.Model)
	}
	return llm.NewGenerator(ctx, genCfg, cfg.APIKey)
}

// buildPipeline wires every stage collaborator named by cfg. The returned
// backends must be closed by the caller.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*pipeline.Pipeline, *backends, error) {
	downloader, err := newDownloader(cfg)
	if err != nil {
		return nil, nil, err
	}
	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	extractor := &ingestion.TextExtractor{}
	if cfg.UseBrowser {
		extractor.Renderer = &fetch.BrowserRenderer{Timeout: browserTimeout}
	}

	p := &pipeline.Pipeline{
		Store:      b.records,
		Objects:    b.objects,
		Downloader: downloader,
		Extractor:  extractor,
		Generator:  generator,
		Validator: validation.NewValidator(b.records, b.objects,
			validation.WithSignedURLTTL(cfg.SignedURLTTL()),
			validation.WithLogger(logger),
		),
		Logger: logger,
	}
	return p, b, nil
}
