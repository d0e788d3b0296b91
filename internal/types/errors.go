package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, caller-visible failure code
type ErrorCode string

// Error codes surfaced to callers
const (
	CodeIngestBadResponse ErrorCode = "INGEST_BAD_RESPONSE"
	CodeGenSchemaFail     ErrorCode = "GEN_SCHEMA_FAIL"
	CodeGenModelFail      ErrorCode = "GEN_MODEL_FAIL"
	CodeRenderFail        ErrorCode = "RENDER_FAIL"
	CodeStoreFail         ErrorCode = "STORE_FAIL"
	CodeMIMEMismatch      ErrorCode = "MIME_MISMATCH"
	CodeDocxTooSmall      ErrorCode = "DOCX_TOO_SMALL"
	CodePDFTooSmall       ErrorCode = "PDF_TOO_SMALL"
	CodeDocxMissingTitle  ErrorCode = "DOCX_MISSING_TITLE"
	CodeDocxHeadingShort  ErrorCode = "DOCX_HEADING_SHORT"
	CodeLowContent        ErrorCode = "LOW_CONTENT"
	CodePDFPageShort      ErrorCode = "PDF_PAGE_SHORT"
	CodePDFTextShort      ErrorCode = "PDF_TEXT_SHORT"
)

// PipelineError is a fatal pipeline failure carrying a stable code
type PipelineError struct {
	Code    ErrorCode
	Stage   JobStage
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError builds a PipelineError for a stage
func NewPipelineError(code ErrorCode, stage JobStage, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: message, Cause: cause}
}

// CodeOf returns the stable code carried by err, or "" if none
func CodeOf(err error) ErrorCode {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}
