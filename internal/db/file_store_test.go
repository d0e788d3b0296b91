package db

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/deliverable-builder/internal/types"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStore_EnvelopeShape(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendJobLog(ctx, &types.JobLogRecord{
		JobID:     "job-1",
		Stage:     types.StageIngest,
		Message:   "started",
		StartedAt: time.Now().UTC(),
	}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "artifacts")
	assert.Contains(t, raw, "materials")
	assert.Contains(t, raw, "jobs")
	assert.Contains(t, raw, "jsonPayloads")
	assert.JSONEq(t, "[]", string(raw["artifacts"]))
}

func TestFileStore_UpsertMaterialKeepsIdentity(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &types.MaterialRecord{
		ID:             "mat-1",
		AssignmentID:   "asg-1",
		ExternalFileID: "file-9",
		Status:         types.MaterialPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, store.UpsertMaterial(ctx, first))

	second := &types.MaterialRecord{
		ID:             "mat-2",
		AssignmentID:   "asg-1",
		ExternalFileID: "file-9",
		Status:         types.MaterialReady,
		SHA256:         "abc",
		CreatedAt:      created.Add(time.Hour),
		UpdatedAt:      created.Add(time.Hour),
	}
	require.NoError(t, store.UpsertMaterial(ctx, second))
	assert.Equal(t, "mat-1", second.ID)

	got, err := store.FindMaterial(ctx, "asg-1", "file-9")
	require.NoError(t, err)
	assert.Equal(t, "mat-1", got.ID)
	assert.Equal(t, types.MaterialReady, got.Status)
	assert.True(t, got.CreatedAt.Equal(created))

	byID, err := store.GetMaterial(ctx, "mat-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", byID.SHA256)

	_, err = store.GetMaterial(ctx, "mat-2")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFileStore_UpsertMaterialFreezesContent(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	ready := &types.MaterialRecord{
		ID: "mat-1", AssignmentID: "asg-1", ExternalFileID: "file-9",
		Filename: "week3.txt", MIME: "text/plain", ByteLength: 20,
		SHA256: "0e7e", StorageKey: "0e/0e7e.txt",
		Status: types.MaterialReady, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.UpsertMaterial(ctx, ready))

	failed := &types.MaterialRecord{
		ID: "mat-2", AssignmentID: "asg-1", ExternalFileID: "file-9",
		Status:       types.MaterialFailed,
		ErrorCode:    types.StringPtr(string(types.CodeIngestBadResponse)),
		ErrorMessage: types.StringPtr("download returned an empty body"),
		CreatedAt:    now.Add(time.Hour), UpdatedAt: now.Add(time.Hour),
	}
	require.NoError(t, store.UpsertMaterial(ctx, failed))
	assert.Equal(t, "0e7e", failed.SHA256, "caller sees the stored content fields")

	got, err := store.FindMaterial(ctx, "asg-1", "file-9")
	require.NoError(t, err)
	assert.Equal(t, "mat-1", got.ID)
	assert.Equal(t, types.MaterialFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, "0e7e", got.SHA256)
	assert.Equal(t, "0e/0e7e.txt", got.StorageKey)
	assert.Equal(t, "week3.txt", got.Filename)
	assert.Equal(t, "text/plain", got.MIME)
	assert.Equal(t, int64(20), got.ByteLength)
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Hour)))
}

func TestFileStore_ArtifactLifecycle(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	docx := &types.ArtifactRecord{
		ID: "art-docx", AssignmentID: "asg-1", ArtifactGroupID: "grp-1",
		Type: types.ArtifactDocx, Status: types.ArtifactPending, CreatedAt: now,
	}
	pdf := &types.ArtifactRecord{
		ID: "art-pdf", AssignmentID: "asg-1", ArtifactGroupID: "grp-1",
		Type: types.ArtifactPDF, Status: types.ArtifactPending, CreatedAt: now.Add(time.Millisecond),
	}
	require.NoError(t, store.CreateArtifact(ctx, docx))
	require.NoError(t, store.CreateArtifact(ctx, pdf))
	assert.Error(t, store.CreateArtifact(ctx, docx), "duplicate IDs are rejected")

	pdf.Status = types.ArtifactValid
	pdf.PageCount = types.IntPtr(3)
	require.NoError(t, store.UpdateArtifact(ctx, pdf))

	got, err := store.GetArtifact(ctx, "art-pdf")
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactValid, got.Status)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 3, *got.PageCount)

	all, err := store.ListArtifacts(ctx, ArtifactFilters{ArtifactGroupID: "grp-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "art-docx", all[0].ID)

	valid, err := store.ListArtifacts(ctx, ArtifactFilters{Status: types.ArtifactValid})
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "art-pdf", valid[0].ID)

	err = store.UpdateArtifact(ctx, &types.ArtifactRecord{ID: "missing"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFileStore_FinalizeArtifactOnlyWhilePending(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	pending := &types.ArtifactRecord{ID: "art-1", Type: types.ArtifactDocx, Status: types.ArtifactPending}
	require.NoError(t, store.CreateArtifact(ctx, pending))

	first := *pending
	first.Status = types.ArtifactValid
	first.SignedURL = types.StringPtr("local-signed://first")
	applied, err := store.FinalizeArtifact(ctx, &first)
	require.NoError(t, err)
	assert.True(t, applied)

	late := *pending
	late.Status = types.ArtifactFailed
	late.ErrorCode = types.StringPtr(string(types.CodeLowContent))
	applied, err = store.FinalizeArtifact(ctx, &late)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetArtifact(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactValid, got.Status)
	assert.Equal(t, "local-signed://first", *got.SignedURL)
	assert.Nil(t, got.ErrorCode)

	_, err = store.FinalizeArtifact(ctx, &types.ArtifactRecord{ID: "missing"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFileStore_DeliverableJSON(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	rec := &types.DeliverableJSONRecord{
		ID:              "json-1",
		AssignmentID:    "asg-1",
		ArtifactGroupID: "grp-1",
		Payload:         json.RawMessage(`{"title":"T"}`),
		SHA256:          "deadbeef",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateDeliverableJSON(ctx, rec))
	assert.Error(t, store.CreateDeliverableJSON(ctx, rec))

	got, err := store.GetDeliverableJSON(ctx, "json-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"T"}`, string(got.Payload))
}

func TestFileStore_JobLogOpenClose(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendJobLog(ctx, &types.JobLogRecord{JobID: "job-1", Stage: types.StageIngest, StartedAt: start}))
	require.NoError(t, store.AppendJobLog(ctx, &types.JobLogRecord{JobID: "job-2", Stage: types.StageIngest, StartedAt: start}))
	require.NoError(t, store.CloseJobLog(ctx, "job-1", types.StageIngest, start.Add(time.Second)))

	logs, err := store.ListJobLogs(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].FinishedAt)
	assert.True(t, logs[0].FinishedAt.Equal(start.Add(time.Second)))

	err = store.CloseJobLog(ctx, "job-1", types.StageIngest, start)
	assert.ErrorIs(t, err, ErrRecordNotFound, "already closed entries are not reopened")

	other, err := store.ListJobLogs(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].FinishedAt)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.CreateArtifact(ctx, &types.ArtifactRecord{ID: "art-1", Type: types.ArtifactPDF}))

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.GetArtifact(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactPDF, got.Type)
}

func TestFileStore_CorruptEnvelope(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	_, err := store.GetArtifact(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse record envelope")
}
