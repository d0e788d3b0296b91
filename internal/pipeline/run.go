// Package pipeline provides the high-level orchestration of a deliverable run:
// ingest a material, generate the deliverable JSON, render DOCX and PDF, then
// validate both artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/ingestion"
	"github.com/jonathan/deliverable-builder/internal/llm"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/pipeline/steps"
	"github.com/jonathan/deliverable-builder/internal/rendering"
	"github.com/jonathan/deliverable-builder/internal/schemas"
	"github.com/jonathan/deliverable-builder/internal/types"
	"github.com/jonathan/deliverable-builder/internal/validation"
)

// ErrArtifactNotValid is returned when a download URL is requested for an
// artifact that did not pass validation.
var ErrArtifactNotValid = errors.New("artifact is not valid")

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	JobID   string         `json:"job_id"`
	Stage   types.JobStage `json:"stage"`
	Message string         `json:"message"`
	Content any            `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunInput identifies the material to build a deliverable from.
type RunInput struct {
	// JobID is generated when empty
	JobID          string
	AssignmentID   string
	ExternalFileID string
	Prompt         string
	OnProgress     ProgressCallback
}

// RunResult holds every record produced by a completed run. Either artifact
// may be failed; the run itself still succeeded.
type RunResult struct {
	JobID       string                       `json:"job_id"`
	Material    *types.MaterialRecord        `json:"material"`
	Deliverable *types.DeliverableJSONRecord `json:"deliverable"`
	Docx        *types.ArtifactRecord        `json:"docx"`
	PDF         *types.ArtifactRecord        `json:"pdf"`
}

// Pipeline wires the stages to their stores and collaborators.
type Pipeline struct {
	Store      db.Store
	Objects    *objectstore.Store
	Downloader ingestion.Downloader
	// Extractor turns material bytes into prompt text; nil uses a static extractor
	Extractor *ingestion.TextExtractor
	Generator llm.DeliverableGenerator
	// Validator defaults to one built over Store and Objects
	Validator *validation.Validator
	Logger    *observability.Logger
	Clock     func() time.Time

	validatorOnce    sync.Once
	defaultValidator *validation.Validator
}

// Run executes Ingest, Generate, Render, Validate(docx) and Validate(pdf) in
// order. Ingest, generate, render and store failures abort the run with a
// coded *types.PipelineError and a terminal "failed" job log entry. Artifact
// validation failures are recorded on the artifacts and do not abort.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if in.AssignmentID == "" || in.ExternalFileID == "" {
		return nil, fmt.Errorf("assignment id and external file id are required")
	}
	jobID := in.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	r := &run{p: p, in: in, jobID: jobID, result: &RunResult{JobID: jobID}}
	logger := p.logger().With("job_id", jobID, "assignment_id", in.AssignmentID)
	logger.Info("pipeline run started", "external_file_id", in.ExternalFileID)

	if err := r.execute(ctx); err != nil {
		code := types.CodeOf(err)
		r.terminal(ctx, types.StageFailed, err.Error(), code)
		observability.RunsTotal.WithLabelValues("failed", string(code)).Inc()
		logger.Error("pipeline run failed", "code", code, "error", err)
		return nil, err
	}

	summary := fmt.Sprintf("docx=%s pdf=%s", r.result.Docx.Status, r.result.PDF.Status)
	r.terminal(ctx, types.StageDone, summary, "")
	observability.RunsTotal.WithLabelValues("done", "").Inc()
	logger.Info("pipeline run finished", "docx", r.result.Docx.Status, "pdf", r.result.PDF.Status)
	r.emit(types.StageDone, summary, r.result)
	return r.result, nil
}

// Revalidate runs the validator over an existing artifact. Artifacts that
// already have a verdict are returned unchanged.
func (p *Pipeline) Revalidate(ctx context.Context, artifactID string) (*types.ArtifactRecord, error) {
	artifact, err := p.Store.GetArtifact(ctx, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return p.validator().Validate(ctx, artifact)
}

// IssueSignedURL issues a fresh download URL for a valid artifact. The
// artifact record is not modified.
func (p *Pipeline) IssueSignedURL(ctx context.Context, artifactID string, ttl time.Duration) (string, error) {
	artifact, err := p.Store.GetArtifact(ctx, artifactID)
	if err != nil {
		return "", fmt.Errorf("failed to load artifact: %w", err)
	}
	if artifact.Status != types.ArtifactValid {
		return "", fmt.Errorf("%w: %s is %s", ErrArtifactNotValid, artifactID, artifact.Status)
	}
	return p.Objects.CreateSignedURL(artifact.StorageKey, ttl)
}

// JobStatus returns the job's log entries and the progress derived from them.
func (p *Pipeline) JobStatus(ctx context.Context, jobID string) ([]types.JobLogRecord, *steps.Progress, error) {
	logs, err := p.Store.ListJobLogs(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list job logs: %w", err)
	}
	return logs, steps.Summarize(jobID, logs), nil
}

// run carries the state of one Run call.
type run struct {
	p      *Pipeline
	in     RunInput
	jobID  string
	result *RunResult

	material    types.Material
	deliverable *types.Deliverable
}

func (r *run) execute(ctx context.Context) error {
	if err := r.stage(ctx, types.StageIngest, "ingesting "+r.in.ExternalFileID, r.ingest); err != nil {
		return err
	}
	if err := r.stage(ctx, types.StageGenerate, "generating deliverable JSON", r.generate); err != nil {
		return err
	}
	if err := r.stage(ctx, types.StageRender, "rendering docx and pdf", r.render); err != nil {
		return err
	}

	validateDocx := func(ctx context.Context) error { return r.validate(ctx, &r.result.Docx) }
	if err := r.stage(ctx, types.StageValidate, "validating docx artifact", validateDocx); err != nil {
		return err
	}
	validatePDF := func(ctx context.Context) error { return r.validate(ctx, &r.result.PDF) }
	return r.stage(ctx, types.StageValidate, "validating pdf artifact", validatePDF)
}

// stage appends the stage's job log entry, runs fn and closes the entry on
// success. A failed stage's entry stays open.
func (r *run) stage(ctx context.Context, stage types.JobStage, message string, fn func(context.Context) error) error {
	entry := &types.JobLogRecord{
		JobID:     r.jobID,
		Stage:     stage,
		Message:   message,
		StartedAt: r.p.now(),
	}
	if err := r.p.Store.AppendJobLog(ctx, entry); err != nil {
		return types.NewPipelineError(types.CodeStoreFail, stage, "failed to append job log", err)
	}
	r.emit(stage, message, nil)

	start := time.Now()
	err := fn(ctx)
	observability.ObserveStage(string(stage), start, err)
	if err != nil {
		return err
	}

	if err := r.p.Store.CloseJobLog(ctx, r.jobID, stage, r.p.now()); err != nil {
		return types.NewPipelineError(types.CodeStoreFail, stage, "failed to close job log", err)
	}
	return nil
}

// terminal appends a closed done or failed entry. A write failure is logged
// and does not replace the run's outcome.
func (r *run) terminal(ctx context.Context, stage types.JobStage, message string, code types.ErrorCode) {
	now := r.p.now()
	entry := &types.JobLogRecord{
		JobID:      r.jobID,
		Stage:      stage,
		Message:    message,
		StartedAt:  now,
		FinishedAt: &now,
	}
	if code != "" {
		entry.ErrorCode = types.StringPtr(string(code))
	}
	if err := r.p.Store.AppendJobLog(ctx, entry); err != nil {
		r.p.logger().Warn("failed to append terminal job log", "job_id", r.jobID, "stage", stage, "error", err)
	}
	if stage == types.StageFailed {
		r.emit(stage, message, nil)
	}
}

func (r *run) emit(stage types.JobStage, message string, content any) {
	if r.in.OnProgress != nil {
		r.in.OnProgress(ProgressEvent{JobID: r.jobID, Stage: stage, Message: message, Content: content})
	}
}

func (r *run) ingest(ctx context.Context) error {
	extractor := r.p.Extractor
	if extractor == nil {
		extractor = &ingestion.TextExtractor{}
	}
	ingester := &ingestion.Ingester{
		Downloader: r.p.Downloader,
		Objects:    r.p.Objects,
		Records:    r.p.Store,
		Extractor:  extractor,
		Now:        r.p.now,
		Logger:     r.p.logger(),
	}

	res, err := ingester.Ingest(ctx, r.in.AssignmentID, r.in.ExternalFileID)
	if err != nil {
		return err
	}
	r.result.Material = res.Record
	r.material = res.Material
	return nil
}

func (r *run) generate(ctx context.Context) error {
	raw, err := r.p.Generator.GenerateDeliverable(ctx, r.in.Prompt, []types.Material{r.material})
	if err != nil {
		return types.NewPipelineError(types.CodeGenModelFail, types.StageGenerate, "generator call failed", err)
	}

	deliverable, err := schemas.ValidateDeliverable(raw)
	if err != nil {
		return types.NewPipelineError(types.CodeGenSchemaFail, types.StageGenerate, "generated JSON failed the schema", err)
	}
	if deliverable.AssignmentID != r.in.AssignmentID {
		r.p.logger().Warn("generated assignment id differs from the run",
			"job_id", r.jobID, "generated", deliverable.AssignmentID, "assignment_id", r.in.AssignmentID)
	}

	put, err := r.p.Objects.Put(ctx, raw, "json")
	if err != nil {
		return types.NewPipelineError(types.CodeStoreFail, types.StageGenerate, "failed to store deliverable JSON", err)
	}

	record := &types.DeliverableJSONRecord{
		ID:              uuid.New().String(),
		AssignmentID:    r.in.AssignmentID,
		ArtifactGroupID: uuid.New().String(),
		Payload:         raw,
		SHA256:          put.SHA256,
		StorageKey:      put.StorageKey,
		CreatedAt:       r.p.now(),
	}
	if err := r.p.Store.CreateDeliverableJSON(ctx, record); err != nil {
		return types.NewPipelineError(types.CodeStoreFail, types.StageGenerate, "failed to record deliverable JSON", err)
	}

	r.result.Deliverable = record
	r.deliverable = deliverable
	return nil
}

func (r *run) render(ctx context.Context) error {
	var (
		docx *rendering.DocxResult
		pdf  *rendering.PDFResult
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docx, err = rendering.RenderDocx(r.deliverable)
		return err
	})
	g.Go(func() error {
		var err error
		pdf, err = rendering.RenderPDF(r.deliverable)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.NewPipelineError(types.CodeRenderFail, types.StageRender, "failed to render deliverable", err)
	}

	groupID := r.result.Deliverable.ArtifactGroupID
	docxRecord, err := r.storeArtifact(ctx, types.ArtifactDocx, groupID, docx.Buffer)
	if err != nil {
		return err
	}
	docxRecord.ParagraphCount = types.IntPtr(docx.ParagraphCount)

	pdfRecord, err := r.storeArtifact(ctx, types.ArtifactPDF, groupID, pdf.Buffer)
	if err != nil {
		return err
	}
	pdfRecord.PageCount = types.IntPtr(pdf.PageCount)
	pdfRecord.TextLength = types.IntPtr(pdf.TextLength)

	for _, a := range []*types.ArtifactRecord{docxRecord, pdfRecord} {
		if err := r.p.Store.CreateArtifact(ctx, a); err != nil {
			return types.NewPipelineError(types.CodeStoreFail, types.StageRender, "failed to record "+string(a.Type)+" artifact", err)
		}
	}

	r.result.Docx = docxRecord
	r.result.PDF = pdfRecord
	return nil
}

// storeArtifact writes the bytes and returns the pending record for them.
func (r *run) storeArtifact(ctx context.Context, kind types.ArtifactType, groupID string, data []byte) (*types.ArtifactRecord, error) {
	put, err := r.p.Objects.Put(ctx, data, kind.Extension())
	if err != nil {
		return nil, types.NewPipelineError(types.CodeStoreFail, types.StageRender, "failed to store "+string(kind)+" bytes", err)
	}
	return &types.ArtifactRecord{
		ID:              uuid.New().String(),
		AssignmentID:    r.in.AssignmentID,
		ArtifactGroupID: groupID,
		Type:            kind,
		Status:          types.ArtifactPending,
		SHA256:          put.SHA256,
		MIME:            kind.MIME(),
		ByteLength:      put.Bytes,
		StorageKey:      put.StorageKey,
		CreatedAt:       r.p.now(),
	}, nil
}

// validate replaces *artifact with its validated record.
func (r *run) validate(ctx context.Context, artifact **types.ArtifactRecord) error {
	validated, err := r.p.validator().Validate(ctx, *artifact)
	if err != nil {
		return types.NewPipelineError(types.CodeStoreFail, types.StageValidate, "failed to validate "+string((*artifact).Type)+" artifact", err)
	}
	*artifact = validated
	return nil
}

func (p *Pipeline) validator() *validation.Validator {
	if p.Validator != nil {
		return p.Validator
	}
	p.validatorOnce.Do(func() {
		p.defaultValidator = validation.NewValidator(p.Store, p.Objects,
			validation.WithClock(p.now),
			validation.WithLogger(p.logger()),
		)
	})
	return p.defaultValidator
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) logger() *observability.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return observability.NopLogger()
}
