package types

import (
	"encoding/json"
	"time"
)

// MaterialStatus is the lifecycle state of an ingested material
type MaterialStatus string

// Material statuses
const (
	MaterialPending MaterialStatus = "pending"
	MaterialReady   MaterialStatus = "ready"
	MaterialFailed  MaterialStatus = "failed"
)

// ArtifactType identifies the rendered format of an artifact
type ArtifactType string

// Artifact types
const (
	ArtifactDocx ArtifactType = "docx"
	ArtifactPDF  ArtifactType = "pdf"
)

// ArtifactStatus is the validation state of an artifact
type ArtifactStatus string

// Artifact statuses
const (
	ArtifactPending ArtifactStatus = "pending"
	ArtifactValid   ArtifactStatus = "valid"
	ArtifactFailed  ArtifactStatus = "failed"
)

// MIME types of the rendered artifacts
const (
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPDF  = "application/pdf"
	MIMEJSON = "application/json"
)

// Extension returns the storage file extension for the artifact type
func (t ArtifactType) Extension() string {
	return string(t)
}

// MIME returns the declared MIME type for the artifact type
func (t ArtifactType) MIME() string {
	switch t {
	case ArtifactDocx:
		return MIMEDocx
	case ArtifactPDF:
		return MIMEPDF
	default:
		return ""
	}
}

// JobStage identifies a pipeline stage in the job log
type JobStage string

// Job stages. StageDone and StageFailed are terminal markers for the whole job.
const (
	StageIngest   JobStage = "ingest"
	StageGenerate JobStage = "generate"
	StageRender   JobStage = "render"
	StageValidate JobStage = "validate"
	StageDone     JobStage = "done"
	StageFailed   JobStage = "failed"
)

// MaterialRecord is one ingested source file
type MaterialRecord struct {
	ID             string         `json:"id"`
	AssignmentID   string         `json:"assignmentId"`
	ExternalFileID string         `json:"externalFileId"`
	Filename       string         `json:"filename"`
	MIME           string         `json:"mime"`
	ByteLength     int64          `json:"byteLength"`
	SHA256         string         `json:"sha256"`
	StorageKey     string         `json:"storageKey"`
	Status         MaterialStatus `json:"status"`
	ErrorCode      *string        `json:"errorCode"`
	ErrorMessage   *string        `json:"errorMessage"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ArtifactRecord is one rendered binary (DOCX or PDF)
type ArtifactRecord struct {
	ID              string         `json:"id"`
	AssignmentID    string         `json:"assignmentId"`
	ArtifactGroupID string         `json:"artifactGroupId"`
	Type            ArtifactType   `json:"type"`
	Status          ArtifactStatus `json:"status"`
	SHA256          string         `json:"sha256"`
	MIME            string         `json:"mime"`
	ByteLength      int64          `json:"byteLength"`
	PageCount       *int           `json:"pageCount"`
	ParagraphCount  *int           `json:"paragraphCount"`
	TextLength      *int           `json:"textLength"`
	ErrorCode       *string        `json:"errorCode"`
	ErrorMessage    *string        `json:"errorMessage"`
	CreatedAt       time.Time      `json:"createdAt"`
	ValidatedAt     *time.Time     `json:"validatedAt"`
	SignedURL       *string        `json:"signedUrl"`
	StorageKey      string         `json:"storageKey"`
}

// Downloadable reports whether callers may hand the artifact to a user
func (a *ArtifactRecord) Downloadable() bool {
	return a.Status == ArtifactValid && a.SignedURL != nil
}

// DeliverableJSONRecord is the schema-validated generator output.
// It is the parent of exactly one DOCX and one PDF artifact sharing ArtifactGroupID.
type DeliverableJSONRecord struct {
	ID              string          `json:"id"`
	AssignmentID    string          `json:"assignmentId"`
	ArtifactGroupID string          `json:"artifactGroupId"`
	Payload         json.RawMessage `json:"payload"`
	SHA256          string          `json:"sha256"`
	StorageKey      string          `json:"storageKey,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// JobLogRecord is an append-only trace entry for a pipeline job
type JobLogRecord struct {
	JobID      string     `json:"jobId"`
	Stage      JobStage   `json:"stage"`
	Message    string     `json:"message"`
	ErrorCode  *string    `json:"errorCode,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v
func StringPtr(v string) *string {
	return &v
}
