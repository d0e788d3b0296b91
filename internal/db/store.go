// Package db provides durable storage for pipeline records: materials,
// artifacts, generated deliverable JSON and job logs.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// ErrRecordNotFound is returned when a lookup or update targets a missing record
var ErrRecordNotFound = errors.New("record not found")

// ArtifactFilters holds optional filters for listing artifacts
type ArtifactFilters struct {
	AssignmentID    string
	ArtifactGroupID string
	Type            types.ArtifactType
	Status          types.ArtifactStatus
}

// Store is the record store used by the pipeline.
// Implementations are not required to be safe for concurrent writers across processes.
type Store interface {
	// UpsertMaterial inserts or replaces the material keyed by (AssignmentID, ExternalFileID)
	UpsertMaterial(ctx context.Context, m *types.MaterialRecord) error
	GetMaterial(ctx context.Context, id string) (*types.MaterialRecord, error)
	FindMaterial(ctx context.Context, assignmentID, externalFileID string) (*types.MaterialRecord, error)

	CreateArtifact(ctx context.Context, a *types.ArtifactRecord) error
	UpdateArtifact(ctx context.Context, a *types.ArtifactRecord) error
	// FinalizeArtifact writes a verdict only while the stored artifact is
	// still pending and reports whether the write was applied
	FinalizeArtifact(ctx context.Context, a *types.ArtifactRecord) (bool, error)
	GetArtifact(ctx context.Context, id string) (*types.ArtifactRecord, error)
	ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]types.ArtifactRecord, error)

	CreateDeliverableJSON(ctx context.Context, r *types.DeliverableJSONRecord) error
	GetDeliverableJSON(ctx context.Context, id string) (*types.DeliverableJSONRecord, error)

	AppendJobLog(ctx context.Context, entry *types.JobLogRecord) error
	// CloseJobLog sets FinishedAt on the latest open entry for (jobID, stage)
	CloseJobLog(ctx context.Context, jobID string, stage types.JobStage, finishedAt time.Time) error
	ListJobLogs(ctx context.Context, jobID string) ([]types.JobLogRecord, error)

	Close() error
}

func matchesArtifact(a *types.ArtifactRecord, f ArtifactFilters) bool {
	if f.AssignmentID != "" && a.AssignmentID != f.AssignmentID {
		return false
	}
	if f.ArtifactGroupID != "" && a.ArtifactGroupID != f.ArtifactGroupID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// keepMaterialContent copies the immutable content fields of a stored material onto m.
func keepMaterialContent(m, stored *types.MaterialRecord) {
	m.Filename = stored.Filename
	m.MIME = stored.MIME
	m.ByteLength = stored.ByteLength
	m.SHA256 = stored.SHA256
	m.StorageKey = stored.StorageKey
}
