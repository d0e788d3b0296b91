// Package validation re-derives structural and content metrics from rendered
// artifact bytes and gates them before they can be downloaded.
package validation

import "fmt"

// Error represents an infrastructure failure while validating an artifact
type Error struct {
	ArtifactID string
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	prefix := "validation error"
	if e.ArtifactID != "" {
		prefix = fmt.Sprintf("validation error (artifact %s)", e.ArtifactID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ParseError represents an artifact whose container could not be parsed
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
