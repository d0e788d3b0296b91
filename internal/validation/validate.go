package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// Acceptance floors.
const (
	MinDocxBytes      = 1024
	MinDocxHeadings   = 2
	MinDocxParagraphs = 8
	MinDocxWords      = 300
	MinPDFBytes       = 1024
	MinPDFPages       = 1
	MinPDFTextLength  = 1200
)

// Verdict is the outcome of running the gates over an artifact's bytes.
type Verdict struct {
	Status         types.ArtifactStatus
	Code           types.ErrorCode
	Message        string
	PageCount      *int
	ParagraphCount *int
	TextLength     *int
}

// Valid reports whether every gate passed.
func (v *Verdict) Valid() bool {
	return v.Status == types.ArtifactValid
}

func failed(code types.ErrorCode, format string, args ...interface{}) *Verdict {
	return &Verdict{Status: types.ArtifactFailed, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidateBytes runs the gates for an artifact of kind declared as
// declaredMIME. recordedTextLength is the render-time PDF text length, if any;
// the larger of it and the measured length is gated.
func ValidateBytes(kind types.ArtifactType, declaredMIME string, data []byte, recordedTextLength *int) *Verdict {
	if declaredMIME == "" {
		declaredMIME = kind.MIME()
	}
	detected := DetectMIME(data)
	if detected == "" || detected != declaredMIME || detected != kind.MIME() {
		return failed(types.CodeMIMEMismatch, "declared %q for %s but bytes look like %q", declaredMIME, kind, detected)
	}

	switch kind {
	case types.ArtifactDocx:
		return validateDocx(data)
	case types.ArtifactPDF:
		return validatePDF(data, recordedTextLength)
	default:
		return failed(types.CodeMIMEMismatch, "unsupported artifact type %q", kind)
	}
}

func validateDocx(data []byte) *Verdict {
	if len(data) < MinDocxBytes {
		return failed(types.CodeDocxTooSmall, "docx is %d bytes, minimum is %d", len(data), MinDocxBytes)
	}

	metrics, err := InspectDocx(data)
	if err != nil {
		return failed(types.CodeLowContent, "docx content unreadable: %v", err)
	}

	paragraphs := types.IntPtr(metrics.Paragraphs)
	withCounts := func(v *Verdict) *Verdict {
		v.ParagraphCount = paragraphs
		return v
	}

	switch {
	case !metrics.HasTitle:
		return withCounts(failed(types.CodeDocxMissingTitle, "docx has no Title-styled paragraph"))
	case metrics.Headings < MinDocxHeadings:
		return withCounts(failed(types.CodeDocxHeadingShort, "docx has %d headings, minimum is %d", metrics.Headings, MinDocxHeadings))
	case metrics.Paragraphs < MinDocxParagraphs:
		return withCounts(failed(types.CodeLowContent, "docx has %d paragraphs, minimum is %d", metrics.Paragraphs, MinDocxParagraphs))
	case metrics.Words < MinDocxWords:
		return withCounts(failed(types.CodeLowContent, "docx has %d words, minimum is %d", metrics.Words, MinDocxWords))
	}

	return &Verdict{Status: types.ArtifactValid, ParagraphCount: paragraphs}
}

func validatePDF(data []byte, recordedTextLength *int) *Verdict {
	if len(data) < MinPDFBytes {
		return failed(types.CodePDFTooSmall, "pdf is %d bytes, minimum is %d", len(data), MinPDFBytes)
	}

	metrics := InspectPDF(data)
	textLength := metrics.TextLength
	if recordedTextLength != nil && *recordedTextLength > textLength {
		textLength = *recordedTextLength
	}

	counts := func(v *Verdict) *Verdict {
		v.PageCount = types.IntPtr(metrics.PageCount)
		v.TextLength = types.IntPtr(textLength)
		return v
	}

	if metrics.PageCount < MinPDFPages {
		return counts(failed(types.CodePDFPageShort, "pdf has %d pages", metrics.PageCount))
	}
	if textLength < MinPDFTextLength {
		return counts(failed(types.CodePDFTextShort, "pdf text is %d characters, minimum is %d", textLength, MinPDFTextLength))
	}

	return counts(&Verdict{Status: types.ArtifactValid})
}

// Validator gates stored artifacts and records the verdict.
type Validator struct {
	records      db.Store
	objects      *objectstore.Store
	signedURLTTL time.Duration
	now          func() time.Time
	logger       *observability.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithSignedURLTTL sets the lifetime of URLs issued for valid artifacts.
func WithSignedURLTTL(ttl time.Duration) Option {
	return func(v *Validator) {
		v.signedURLTTL = ttl
	}
}

// WithClock replaces time.Now for ValidatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithLogger sets the validator's logger.
func WithLogger(logger *observability.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a Validator over the given record and object stores.
func NewValidator(records db.Store, objects *objectstore.Store, opts ...Option) *Validator {
	v := &Validator{
		records:      records,
		objects:      objects,
		signedURLTTL: objectstore.DefaultSignedURLTTL,
		now:          time.Now,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate re-reads the artifact's bytes from the object store, runs the
// gates and persists the verdict. A valid artifact gets a signed URL; a failed
// one never does. Artifacts that are no longer pending are returned unchanged,
// and when the stored record gained a verdict after the caller read it the
// stored record is returned instead. An error is returned only when the blob cannot be read or the record cannot
// be written.
func (v *Validator) Validate(ctx context.Context, artifact *types.ArtifactRecord) (*types.ArtifactRecord, error) {
	if artifact == nil {
		return nil, &Error{Message: "artifact is nil"}
	}
	if artifact.Status != types.ArtifactPending {
		unchanged := *artifact
		return &unchanged, nil
	}

	data, err := v.objects.Get(ctx, artifact.StorageKey)
	if err != nil {
		return nil, &Error{ArtifactID: artifact.ID, Message: "failed to read artifact bytes", Cause: err}
	}

	var recorded *int
	if artifact.Type == types.ArtifactPDF {
		recorded = artifact.TextLength
	}
	verdict := ValidateBytes(artifact.Type, artifact.MIME, data, recorded)

	updated := *artifact
	validatedAt := v.now().UTC()
	updated.ValidatedAt = &validatedAt
	updated.Status = verdict.Status
	updated.ByteLength = int64(len(data))
	if verdict.PageCount != nil {
		updated.PageCount = verdict.PageCount
	}
	if verdict.ParagraphCount != nil {
		updated.ParagraphCount = verdict.ParagraphCount
	}
	if verdict.TextLength != nil {
		updated.TextLength = verdict.TextLength
	}
	updated.SignedURL = nil
	updated.ErrorCode = nil
	updated.ErrorMessage = nil

	if verdict.Valid() {
		url, err := v.objects.CreateSignedURL(artifact.StorageKey, v.signedURLTTL)
		if err != nil {
			return nil, &Error{ArtifactID: artifact.ID, Message: "failed to issue signed URL", Cause: err}
		}
		updated.SignedURL = &url
	} else {
		updated.ErrorCode = types.StringPtr(string(verdict.Code))
		updated.ErrorMessage = types.StringPtr(verdict.Message)
	}

	applied, err := v.records.FinalizeArtifact(ctx, &updated)
	if err != nil {
		v.revoke(updated.SignedURL)
		return nil, &Error{ArtifactID: artifact.ID, Message: "failed to persist verdict", Cause: err}
	}
	if !applied {
		v.revoke(updated.SignedURL)
		stored, err := v.records.GetArtifact(ctx, artifact.ID)
		if err != nil {
			return nil, &Error{ArtifactID: artifact.ID, Message: "failed to reload artifact", Cause: err}
		}
		v.logger.Debug("artifact already has a verdict", "artifact_id", stored.ID, "status", stored.Status)
		return stored, nil
	}

	observability.ArtifactValidations.WithLabelValues(string(updated.Type), string(updated.Status), string(verdict.Code)).Inc()
	if verdict.Valid() {
		v.logger.Info("artifact validated", "artifact_id", updated.ID, "type", updated.Type, "bytes", updated.ByteLength)
	} else {
		v.logger.Warn("artifact rejected", "artifact_id", updated.ID, "type", updated.Type, "code", verdict.Code, "reason", verdict.Message)
	}

	return &updated, nil
}

func (v *Validator) revoke(signedURL *string) {
	if signedURL != nil {
		v.objects.RevokeSignedURL(*signedURL)
	}
}
