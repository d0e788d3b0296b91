package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/deliverable-builder/internal/types"
)

func TestStaticGenerator_ReturnsCleanedPayload(t *testing.T) {
	g := &StaticGenerator{Payload: []byte("```json\n{\"title\": \"T\"}\n```")}
	out, err := g.GenerateDeliverable(context.Background(), "ignored", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "T"}`, string(out))
}

func TestStaticGenerator_Empty(t *testing.T) {
	_, err := (&StaticGenerator{}).GenerateDeliverable(context.Background(), "p", nil)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "static")
}

func TestStaticGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&StaticGenerator{Payload: []byte("{}")}).GenerateDeliverable(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStaticGeneratorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"x"}`), 0o644))

	g, err := NewStaticGeneratorFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, string(g.Payload))

	_, err = NewStaticGeneratorFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewGenerator_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), nil, "")
	assert.Error(t, err)

	_, err = NewGenerator(context.Background(), &Config{Provider: "other"}, "key")
	assert.Error(t, err)
}

func TestGenerationError_Unwrap(t *testing.T) {
	cause := errors.New("quota")
	err := &GenerationError{Model: "m", Message: "failed", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "generation error (m): failed: quota", err.Error())
}

func TestBuildDeliverablePrompt(t *testing.T) {
	materials := []types.Material{
		{Filename: "week1.pdf", MIME: "application/pdf", Text: strings.Repeat("a", 100)},
		{Filename: "notes.txt", MIME: "text/plain", Text: "short notes"},
	}
	prompt := BuildDeliverablePrompt("  Write a study guide.  ", "asg-9", materials, 100)

	assert.True(t, strings.HasPrefix(prompt, "Task:\nWrite a study guide.\n"))
	assert.Contains(t, prompt, "Assignment id: asg-9")
	for _, field := range []string{"title", "assignment_id", "summary", "sections", "citations", "metadata"} {
		assert.Contains(t, prompt, `"`+field+`"`)
	}
	assert.Contains(t, prompt, "Material 1 (week1.pdf, application/pdf)")
	assert.Contains(t, prompt, strings.Repeat("a", 50)+" [truncated]")
	assert.NotContains(t, prompt, strings.Repeat("a", 51))
	assert.Contains(t, prompt, "short notes")
}

func TestBuildDeliverablePrompt_MaterialPlaceholdersStayLiteral(t *testing.T) {
	materials := []types.Material{
		{Filename: "week2.txt", MIME: "text/plain", Text: "Template sample: {{.Filename}} / {{.MIME}} / {{.AssignmentID}}"},
	}
	prompt := BuildDeliverablePrompt("Summarize.", "asg-2", materials, 0)

	assert.Contains(t, prompt, "Material 1 (week2.txt, text/plain)")
	assert.Contains(t, prompt, "Template sample: {{.Filename}} / {{.MIME}} / {{.AssignmentID}}")
	assert.Equal(t, prompt, BuildDeliverablePrompt("Summarize.", "asg-2", materials, 0))
}

func TestBuildDeliverablePrompt_NoMaterials(t *testing.T) {
	prompt := BuildDeliverablePrompt("p", "a", nil, 0)
	assert.NotContains(t, prompt, "Material 1")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "hé [truncated]", truncateRunes("héllo", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}

func TestDeliverableResponseSchema(t *testing.T) {
	schema := deliverableResponseSchema()
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{"title", "assignment_id", "summary", "sections", "metadata"}, schema.Required)
	assert.Equal(t, genai.TypeArray, schema.Properties["sections"].Type)
	assert.Equal(t, []string{"heading", "body"}, schema.Properties["sections"].Items.Required)
	assert.NotContains(t, schema.Required, "citations")
}

func TestExtractTextFromResponse(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
	}}}
	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestSystemInstruction(t *testing.T) {
	instruction := SystemInstruction()
	assert.Contains(t, instruction, "study deliverables")
	assert.Contains(t, instruction, "no code fences")
}
