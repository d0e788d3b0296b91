package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactType_MIMEAndExtension(t *testing.T) {
	assert.Equal(t, MIMEDocx, ArtifactDocx.MIME())
	assert.Equal(t, MIMEPDF, ArtifactPDF.MIME())
	assert.Empty(t, ArtifactType("xlsx").MIME())

	assert.Equal(t, "docx", ArtifactDocx.Extension())
	assert.Equal(t, "pdf", ArtifactPDF.Extension())
}

func TestArtifactRecord_Downloadable(t *testing.T) {
	url := "local-signed://abc"
	assert.True(t, (&ArtifactRecord{Status: ArtifactValid, SignedURL: &url}).Downloadable())
	assert.False(t, (&ArtifactRecord{Status: ArtifactValid}).Downloadable())
	assert.False(t, (&ArtifactRecord{Status: ArtifactFailed, SignedURL: &url}).Downloadable())
	assert.False(t, (&ArtifactRecord{Status: ArtifactPending}).Downloadable())
}

func TestArtifactRecord_JSONNames(t *testing.T) {
	validatedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := ArtifactRecord{
		ID:              "a1",
		AssignmentID:    "asg",
		ArtifactGroupID: "g1",
		Type:            ArtifactPDF,
		Status:          ArtifactFailed,
		PageCount:       IntPtr(2),
		TextLength:      IntPtr(900),
		ErrorCode:       StringPtr(string(CodePDFTextShort)),
		ValidatedAt:     &validatedAt,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{
		"id", "assignmentId", "artifactGroupId", "type", "status", "sha256", "mime",
		"byteLength", "pageCount", "paragraphCount", "textLength", "errorCode",
		"errorMessage", "createdAt", "validatedAt", "signedUrl", "storageKey",
	} {
		assert.Contains(t, fields, key)
	}
	assert.Nil(t, fields["signedUrl"])
	assert.Nil(t, fields["paragraphCount"])
	assert.Equal(t, "PDF_TEXT_SHORT", fields["errorCode"])
}

func TestDeliverable_JSONNames(t *testing.T) {
	raw := `{"title":"T","assignment_id":"A","summary":"S",
		"sections":[{"heading":"H","body":"B"}],
		"citations":[{"label":"L","url":"U"}],
		"metadata":{"course":"C","due_at_iso":"D"}}`

	var d Deliverable
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.Equal(t, "A", d.AssignmentID)
	assert.Equal(t, "H", d.Sections[0].Heading)
	assert.Equal(t, "U", d.Citations[0].URL)
	assert.Equal(t, "D", d.Metadata.DueAtISO)
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPipelineError(CodeIngestBadResponse, StageIngest, "download failed", cause)

	assert.Equal(t, "INGEST_BAD_RESPONSE: download failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StageIngest, err.Stage)

	bare := NewPipelineError(CodeRenderFail, StageRender, "no bytes", nil)
	assert.Equal(t, "RENDER_FAIL: no bytes", bare.Error())
}

func TestCodeOf(t *testing.T) {
	pErr := NewPipelineError(CodeGenSchemaFail, StageGenerate, "bad", nil)

	assert.Equal(t, CodeGenSchemaFail, CodeOf(pErr))
	assert.Equal(t, CodeGenSchemaFail, CodeOf(fmt.Errorf("run: %w", pErr)))
	assert.Equal(t, CodeGenSchemaFail, CodeOf(errors.Join(pErr, errors.New("also this"))))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestPointerHelpers(t *testing.T) {
	assert.Equal(t, 7, *IntPtr(7))
	assert.Equal(t, "x", *StringPtr("x"))
}
