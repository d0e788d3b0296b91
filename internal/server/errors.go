package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// ErrInvalidCredentials indicates an unknown client or a wrong secret
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid client credentials"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var invalidCreds *ErrInvalidCredentials
	var invalid *ErrValidation
	switch {
	case errors.As(err, &invalidCreds):
		return http.StatusUnauthorized
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrRecordNotFound), errors.Is(err, objectstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrArtifactNotValid):
		return http.StatusConflict
	}

	switch types.CodeOf(err) {
	case types.CodeIngestBadResponse, types.CodeGenSchemaFail:
		return http.StatusUnprocessableEntity
	case types.CodeGenModelFail:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
