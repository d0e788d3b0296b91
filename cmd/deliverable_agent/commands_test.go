package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/types"
)

const validDeliverable = `{
	"title": "Week 5 Study Guide",
	"assignment_id": "asg-7",
	"summary": "Key ideas from the reading on graph traversal.",
	"sections": [
		{"heading": "Breadth-first search", "body": "Visits nodes level by level.\nUses a queue."},
		{"heading": "Depth-first search", "body": "Follows one branch before backtracking."}
	],
	"citations": [{"label": "Course notes", "url": "https://lms.example.edu/notes/5"}],
	"metadata": {"course": "CS 201", "due_at_iso": "2025-03-14T23:59:00Z"}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenderDeliverableFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "deliverable.json", validDeliverable)
	outDir := filepath.Join(dir, "out")

	var out strings.Builder
	artifacts, err := renderDeliverableFile(&out, in, outDir)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	for _, a := range artifacts {
		assert.Equal(t, types.ArtifactValid, a.Status, "%s: %v", a.Type, a.ErrorMessage)
		assert.FileExists(t, filepath.Join(outDir, "deliverable."+a.Type.Extension()))
	}
	assert.Contains(t, out.String(), "RENDERED ARTIFACTS")
}

func TestRenderDeliverableFile_SchemaFailure(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bad.json", `{"title":"Only a title"}`)

	_, err := renderDeliverableFile(io.Discard, in, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")

	_, err = renderDeliverableFile(io.Discard, filepath.Join(dir, "missing.json"), dir)
	assert.Error(t, err)
}

func TestValidateArtifactFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "deliverable.json", validDeliverable)
	_, err := renderDeliverableFile(io.Discard, in, dir)
	require.NoError(t, err)

	assert.NoError(t, validateArtifactFile(io.Discard, filepath.Join(dir, "deliverable.pdf"), ""))
	assert.NoError(t, validateArtifactFile(io.Discard, filepath.Join(dir, "deliverable.docx"), ""))

	tiny := writeFile(t, dir, "tiny.pdf", "%PDF-1.4\n1 0 obj << >> endobj\n%%EOF\n")
	err = validateArtifactFile(io.Discard, tiny, "")
	require.Error(t, err)
	assert.Equal(t, types.CodePDFTooSmall, types.CodeOf(err))

	// a PDF declared as DOCX fails the MIME gate
	err = validateArtifactFile(io.Discard, filepath.Join(dir, "deliverable.pdf"), "docx")
	assert.Equal(t, types.CodeMIMEMismatch, types.CodeOf(err))
}

func TestArtifactTypeFor(t *testing.T) {
	tests := []struct {
		path, explicit string
		want           types.ArtifactType
		wantErr        bool
	}{
		{"a.pdf", "", types.ArtifactPDF, false},
		{"a.DOCX", "", types.ArtifactDocx, false},
		{"a.bin", "pdf", types.ArtifactPDF, false},
		{"a.bin", "", "", true},
		{"a.pdf", "xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := artifactTypeFor(tt.path, tt.explicit)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRunCommand_MissingFlags(t *testing.T) {
	_, err := executeCommand(t, "", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--assignment and --file are required")
}

func TestRunCommand_MissingGenerator(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()

	_, err := executeCommand(t, "", "run", "--assignment", "asg-7", "--file", "week5.txt",
		"--materials-dir", dir, "--storage-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestRunCommand_EndToEnd(t *testing.T) {
	materials := t.TempDir()
	writeFile(t, materials, "week5.txt", "Week 5 reading: graph traversal.\nBFS uses a queue; DFS uses a stack.")
	payload := writeFile(t, t.TempDir(), "payload.json", validDeliverable)
	storage := t.TempDir()

	out, err := executeCommand(t, "", "run",
		"--assignment", "asg-7",
		"--file", "week5.txt",
		"--job-id", "job-cli-1",
		"--materials-dir", materials,
		"--payload", payload,
		"--storage-dir", storage,
		"--json",
	)
	require.NoError(t, err, out)

	var result pipeline.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, "job-cli-1", result.JobID)
	require.NotNil(t, result.Docx)
	require.NotNil(t, result.PDF)
	assert.Equal(t, types.ArtifactValid, result.Docx.Status)
	assert.Equal(t, types.ArtifactValid, result.PDF.Status)
	assert.DirExists(t, filepath.Join(storage, "records"))
	assert.DirExists(t, filepath.Join(storage, "objects"))

	out, err = executeCommand(t, "", "logs", "job-cli-1", "--storage-dir", storage)
	require.NoError(t, err, out)
	assert.Contains(t, out, "JOB LOG job-cli-1")
	assert.Contains(t, out, "Status: done")

	_, err = executeCommand(t, "", "logs", "no-such-job", "--storage-dir", storage)
	assert.ErrorContains(t, err, "job not found")
}

func TestRunCommand_VerbosePrinter(t *testing.T) {
	materials := t.TempDir()
	writeFile(t, materials, "week5.txt", "Week 5 reading: graph traversal.")
	payload := writeFile(t, t.TempDir(), "payload.json", validDeliverable)

	out, err := executeCommand(t, "", "run",
		"--assignment", "asg-7",
		"--file", "week5.txt",
		"--materials-dir", materials,
		"--payload", payload,
		"--storage-dir", t.TempDir(),
		"--verbose",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "[ingest]")
	assert.Contains(t, out, "INGESTED MATERIAL")
	assert.Contains(t, out, "GENERATED DELIVERABLE")
	assert.Contains(t, out, "RENDERED ARTIFACTS")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	materials := t.TempDir()
	writeFile(t, materials, "week5.txt", "Week 5 reading: graph traversal.")
	payload := writeFile(t, t.TempDir(), "payload.json", validDeliverable)
	storage := t.TempDir()

	cfgBody, err := json.Marshal(map[string]any{
		"storage_dir":   storage,
		"materials_dir": materials,
		"payload_file":  payload,
	})
	require.NoError(t, err)
	cfgPath := writeFile(t, t.TempDir(), "config.json", string(cfgBody))

	out, err := executeCommand(t, "", "run", "--config", cfgPath, "--assignment", "asg-7", "--file", "week5.txt", "--json")
	require.NoError(t, err, out)
	assert.DirExists(t, filepath.Join(storage, "records"))
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.json", `{"signed_url_ttl_seconds": -5}`)

	_, err := executeCommand(t, "", "run", "--config", cfgPath, "--assignment", "a", "--file", "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SignedURLTTLSeconds")
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "deliverable.json", validDeliverable)

	out, err := executeCommand(t, "", "render", "--in", in, "--out-dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "deliverable.docx")
	assert.Contains(t, out, "deliverable.pdf")

	out, err = executeCommand(t, "", "validate", "--in", filepath.Join(dir, "deliverable.docx"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "DOCX  valid")
}

func TestHashSecretCommand(t *testing.T) {
	out, err := executeCommand(t, "", "hash-secret", "--secret", "s3cret-value", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-value")))

	out, err = executeCommand(t, "from-stdin\n", "hash-secret", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = executeCommand(t, "", "hash-secret", "--cost", "4")
	assert.Error(t, err)
}
