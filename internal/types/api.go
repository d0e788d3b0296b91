package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// RunRequest is the body of POST /runs.
type RunRequest struct {
	AssignmentID   string `json:"assignment_id" validate:"required,max=200"`
	ExternalFileID string `json:"external_file_id" validate:"required,max=500"`
	Prompt         string `json:"prompt" validate:"max=20000"`
}

// TokenRequest exchanges API client credentials for a bearer token.
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required,min=8"`
}

// TokenResponse is returned by POST /auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignedURLRequest is the optional body of POST /artifacts/{id}/signed-url.
type SignedURLRequest struct {
	TTLSeconds int `json:"ttl_seconds" validate:"gte=0,lte=86400"`
}

// SignedURLResponse carries a freshly issued download URL.
type SignedURLResponse struct {
	ArtifactID  string    `json:"artifact_id"`
	SignedURL   string    `json:"signed_url"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Validate validates the RunRequest using the validator.
func (r *RunRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the TokenRequest using the validator.
func (r *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the SignedURLRequest using the validator.
func (r *SignedURLRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
