package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/deliverable-builder/internal/config"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// ClientDirectory looks up API clients by id.
type ClientDirectory interface {
	Client(id string) (config.APIClient, bool)
}

// AuthHandler exchanges API client credentials for bearer tokens.
type AuthHandler struct {
	clients    ClientDirectory
	secrets    *config.SecretConfig
	jwtService *JWTService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(clients ClientDirectory, secrets *config.SecretConfig, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{
		clients:    clients,
		secrets:    secrets,
		jwtService: jwtService,
	}
}

// Authenticate checks a client's secret against its stored bcrypt hash.
// Unknown clients and wrong secrets return the same error.
func (h *AuthHandler) Authenticate(clientID, secret string) error {
	client, ok := h.clients.Client(clientID)
	if !ok || !h.secrets.VerifySecret(secret, client.SecretHash) {
		return &ErrInvalidCredentials{}
	}
	return nil
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req types.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, extractValidationErrors(err), "")
		return
	}

	if err := h.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		writeError(w, HTTPStatus(err), err.Error(), "")
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token", "")
		return
	}

	writeJSON(w, http.StatusOK, types.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			// Return first validation error for simplicity
			ve := validationErrors[0]
			return (&ErrValidation{Field: ve.Field(), Message: ve.Tag()}).Error()
		}
	}
	return fmt.Sprintf("validation error: %v", err)
}
