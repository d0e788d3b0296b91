package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jonathan/deliverable-builder/internal/db"
	"github.com/jonathan/deliverable-builder/internal/objectstore"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/pipeline/steps"
	"github.com/jonathan/deliverable-builder/internal/server/middleware"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// ArtifactListResponse is returned by GET /assignments/{id}/artifacts
type ArtifactListResponse struct {
	AssignmentID string                 `json:"assignment_id"`
	Artifacts    []types.ArtifactRecord `json:"artifacts"`
	Count        int                    `json:"count"`
}

// JobLogsResponse is returned by GET /jobs/{id}/logs
type JobLogsResponse struct {
	JobID    string               `json:"job_id"`
	Logs     []types.JobLogRecord `json:"logs"`
	Progress *steps.Progress      `json:"progress"`
}

func decodeRunRequest(r *http.Request) (*types.RunRequest, error) {
	var req types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, errors.New(extractValidationErrors(err))
	}
	return &req, nil
}

func (s *Server) runInput(r *http.Request, req *types.RunRequest) pipeline.RunInput {
	in := pipeline.RunInput{
		AssignmentID:   req.AssignmentID,
		ExternalFileID: req.ExternalFileID,
		Prompt:         req.Prompt,
	}
	if subject, err := middleware.GetSubject(r); err == nil {
		s.logger.Info("run requested", "subject", subject, "assignment_id", req.AssignmentID)
	}
	return in
}

// handleRun runs the pipeline synchronously and returns every record it produced
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := s.pipeline.Run(r.Context(), s.runInput(r, req))
	if err != nil {
		s.failure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRunStream runs the pipeline and streams progress via SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	var mu sync.Mutex
	in := s.runInput(r, req)
	in.OnProgress = func(event pipeline.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if err := sse.WriteEvent("progress", event); err != nil {
			s.logger.Warn("failed to write SSE event", "error", err)
		}
	}

	result, err := s.pipeline.Run(r.Context(), in)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		sse.WriteError(err.Error(), string(types.CodeOf(err)))
		return
	}
	sse.WriteComplete(result)
}

// handleGetArtifact returns an artifact record by ID
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.pipeline.Store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// handleAssignmentArtifacts lists an assignment's artifacts, optionally
// filtered by ?type= and ?status=
func (s *Server) handleAssignmentArtifacts(w http.ResponseWriter, r *http.Request) {
	assignmentID := r.PathValue("id")
	query := r.URL.Query()

	artifacts, err := s.pipeline.Store.ListArtifacts(r.Context(), db.ArtifactFilters{
		AssignmentID: assignmentID,
		Type:         types.ArtifactType(query.Get("type")),
		Status:       types.ArtifactStatus(query.Get("status")),
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []types.ArtifactRecord{}
	}

	writeJSON(w, http.StatusOK, ArtifactListResponse{
		AssignmentID: assignmentID,
		Artifacts:    artifacts,
		Count:        len(artifacts),
	})
}

// handleSignedURL issues a fresh one-shot download URL for a valid artifact
func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	var req types.SignedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, extractValidationErrors(err), "")
		return
	}

	ttl := s.app.SignedURLTTL()
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	artifactID := r.PathValue("id")
	signedURL, err := s.pipeline.IssueSignedURL(r.Context(), artifactID, ttl)
	if err != nil {
		s.failure(w, r, err)
		return
	}

	token := strings.TrimPrefix(signedURL, objectstore.SignedURLScheme)
	writeJSON(w, http.StatusOK, types.SignedURLResponse{
		ArtifactID:  artifactID,
		SignedURL:   signedURL,
		DownloadURL: "/download/" + token,
		ExpiresAt:   s.now().Add(ttl).UTC(),
	})
}

// handleRevalidate runs the validator over a stored artifact
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.pipeline.Revalidate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// handleJobLogs returns a job's trace and the progress derived from it
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	logs, progress, err := s.pipeline.JobStatus(r.Context(), jobID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if len(logs) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job not found: %s", jobID), "")
		return
	}

	writeJSON(w, http.StatusOK, JobLogsResponse{JobID: jobID, Logs: logs, Progress: progress})
}

// handleDownload resolves a signed URL token to the artifact bytes. Tokens
// are one-shot; unknown and expired tokens are 404.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, err := s.pipeline.Objects.ResolveSignedURL(r.Context(), objectstore.SignedURLScheme+r.PathValue("token"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "download link is invalid or expired", "")
		return
	}

	detected := mimetype.Detect(data)
	w.Header().Set("Content-Type", detected.String())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="deliverable%s"`, detected.Extension()))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
