package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// Ingester downloads a material, stores its bytes and records it.
type Ingester struct {
	Downloader Downloader
	Objects    *objectstore.Store
	Records    db.Store
	Extractor  *TextExtractor
	Now        func() time.Time
	Logger     *observability.Logger
}

// Result is an ingested material and the text extracted from it.
type Result struct {
	Record   *types.MaterialRecord
	Material types.Material
}

// Ingest downloads (assignmentID, externalFileID). An empty body, an
// undetectable type or a failed download abort with INGEST_BAD_RESPONSE and
// leave the material record failed, never ready.
//
// A material that was stored once keeps its content fields. Re-ingesting it
// only moves status and error fields, and a download whose bytes differ from
// the stored hash is rejected with INGEST_BAD_RESPONSE.
func (in *Ingester) Ingest(ctx context.Context, assignmentID, externalFileID string) (*Result, error) {
	record, err := in.openRecord(ctx, assignmentID, externalFileID)
	if err != nil {
		return nil, err
	}
	stored := record.SHA256 != ""

	download, err := in.Downloader.Download(ctx, assignmentID, externalFileID)
	if err != nil {
		return nil, in.fail(ctx, record, types.CodeIngestBadResponse, "download failed", err)
	}
	if download == nil || len(download.Body) == 0 {
		return nil, in.fail(ctx, record, types.CodeIngestBadResponse, "download returned an empty body", ErrBadResponse)
	}

	if !stored {
		record.Filename = download.Filename
		record.ByteLength = int64(len(download.Body))
	}

	mimeType := DetectMaterialMIME(download.Body, download.ContentType)
	if mimeType == "" {
		return nil, in.fail(ctx, record, types.CodeIngestBadResponse,
			fmt.Sprintf("could not identify content (declared %q)", download.ContentType), ErrBadResponse)
	}

	sum := objectstore.HashBytes(download.Body)
	if stored && sum != record.SHA256 {
		return nil, in.fail(ctx, record, types.CodeIngestBadResponse,
			fmt.Sprintf("content changed since it was ingested (stored %.12s, downloaded %.12s)", record.SHA256, sum), ErrMaterialChanged)
	}

	put, err := in.Objects.Put(ctx, download.Body, ExtensionForMIME(mimeType))
	if err != nil {
		return nil, in.fail(ctx, record, types.CodeStoreFail, "failed to store material bytes", err)
	}
	if !stored {
		record.MIME = mimeType
		record.SHA256 = put.SHA256
		record.StorageKey = put.StorageKey
	}

	text := ""
	if in.Extractor != nil {
		text, err = in.Extractor.Extract(ctx, download.Body, mimeType, download.SourceURL)
		if err != nil {
			in.logger().Warn("material text extraction failed", "material_id", record.ID, "mime", mimeType, "error", err)
			text = ""
		}
	}

	record.Status = types.MaterialReady
	record.ErrorCode = nil
	record.ErrorMessage = nil
	record.UpdatedAt = in.now()
	if err := in.Records.UpsertMaterial(ctx, record); err != nil {
		return nil, types.NewPipelineError(types.CodeStoreFail, types.StageIngest, "failed to record material", err)
	}

	in.logger().Info("material ingested",
		"material_id", record.ID,
		"assignment_id", assignmentID,
		"mime", record.MIME,
		"bytes", record.ByteLength,
		"text_chars", len(text),
		"reingest", stored,
	)

	return &Result{
		Record: record,
		Material: types.Material{
			MaterialID:   record.ID,
			AssignmentID: assignmentID,
			Filename:     record.Filename,
			MIME:         record.MIME,
			Text:         text,
		},
	}, nil
}

// openRecord returns the existing material for the key, or records a new
// pending one.
func (in *Ingester) openRecord(ctx context.Context, assignmentID, externalFileID string) (*types.MaterialRecord, error) {
	existing, err := in.Records.FindMaterial(ctx, assignmentID, externalFileID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrRecordNotFound) {
		return nil, types.NewPipelineError(types.CodeStoreFail, types.StageIngest, "failed to look up material", err)
	}

	now := in.now()
	record := &types.MaterialRecord{
		ID:             uuid.New().String(),
		AssignmentID:   assignmentID,
		ExternalFileID: externalFileID,
		Status:         types.MaterialPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := in.Records.UpsertMaterial(ctx, record); err != nil {
		return nil, types.NewPipelineError(types.CodeStoreFail, types.StageIngest, "failed to record material", err)
	}
	return record, nil
}

// fail marks the record failed and returns the pipeline error. A failure to
// persist the failed status is joined to the returned error.
func (in *Ingester) fail(ctx context.Context, record *types.MaterialRecord, code types.ErrorCode, msg string, cause error) error {
	pErr := types.NewPipelineError(code, types.StageIngest, msg, cause)

	record.Status = types.MaterialFailed
	record.ErrorCode = types.StringPtr(string(code))
	record.ErrorMessage = types.StringPtr(pErr.Error())
	record.UpdatedAt = in.now()
	if err := in.Records.UpsertMaterial(ctx, record); err != nil {
		return errors.Join(pErr, fmt.Errorf("failed to mark material failed: %w", err))
	}

	in.logger().Warn("material ingest failed", "material_id", record.ID, "code", code, "error", cause)
	return pErr
}

func (in *Ingester) now() time.Time {
	if in.Now != nil {
		return in.Now().UTC()
	}
	return time.Now().UTC()
}

func (in *Ingester) logger() *observability.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return observability.NopLogger()
}
