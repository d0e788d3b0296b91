package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/types"
)

func TestErrInvalidCredentials(t *testing.T) {
	err := &ErrInvalidCredentials{}
	assert.Equal(t, "invalid client credentials", err.Error())
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "assignment_id", Message: "required"}
	assert.Equal(t, "validation error: assignment_id - required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	pipelineErr := func(code types.ErrorCode) error {
		return types.NewPipelineError(code, types.StageGenerate, "failed", nil)
	}

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"validation", &ErrValidation{Field: "ttl_seconds", Message: "lte"}, http.StatusBadRequest},
		{"record not found", fmt.Errorf("load: %w", db.ErrRecordNotFound), http.StatusNotFound},
		{"object not found", fmt.Errorf("%w: ab/abc.pdf", objectstore.ErrNotFound), http.StatusNotFound},
		{"artifact not valid", fmt.Errorf("%w: a1 is failed", pipeline.ErrArtifactNotValid), http.StatusConflict},
		{"bad ingest", pipelineErr(types.CodeIngestBadResponse), http.StatusUnprocessableEntity},
		{"schema failure", pipelineErr(types.CodeGenSchemaFail), http.StatusUnprocessableEntity},
		{"model failure", pipelineErr(types.CodeGenModelFail), http.StatusBadGateway},
		{"render failure", pipelineErr(types.CodeRenderFail), http.StatusInternalServerError},
		{"store failure", pipelineErr(types.CodeStoreFail), http.StatusInternalServerError},
		{"unknown error", assert.AnError, http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
