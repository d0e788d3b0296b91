package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/deliverable-builder/internal/prompts"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// SystemInstruction is sent as the model's system prompt.
func SystemInstruction() string {
	return string(prompts.MustLoadGeneration().SystemInstruction)
}

// deliverableFields mirrors the deliverable schema for the prompt text.
var deliverableFields = []struct {
	name        string
	typeHint    string
	description string
}{
	{"title", `"string"`, "document title"},
	{"assignment_id", `"string"`, "copy the assignment id given below"},
	{"summary", `"string"`, "two to four sentence overview"},
	{"sections", `[{"heading": "string", "body": "string"}]`, "at least two sections; use \\n for line breaks inside body"},
	{"citations", `[{"label": "string", "url": "string"}]`, "optional; only sources present in the materials"},
	{"metadata", `{"course": "string", "due_at_iso": "string"}`, "course name and ISO-8601 due date if known, else empty strings"},
}

// BuildDeliverablePrompt assembles the generation prompt. Each material's text
// is truncated so the combined material text stays within maxMaterialChars.
func BuildDeliverablePrompt(prompt, assignmentID string, materials []types.Material, maxMaterialChars int) string {
	templates := prompts.MustLoadGeneration()
	var sb strings.Builder

	sb.WriteString(templates.Header.Fill(map[string]string{
		"Prompt": strings.TrimSpace(prompt),
	}))
	sb.WriteString("{\n")
	for i, field := range deliverableFields {
		sb.WriteString(fmt.Sprintf("  \"%s\": %s // %s", field.name, field.typeHint, field.description))
		if i < len(deliverableFields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString(templates.Assignment.Fill(map[string]string{
		"AssignmentID": assignmentID,
	}))

	budget := maxMaterialChars
	if len(materials) > 0 && budget > 0 {
		budget = maxMaterialChars / len(materials)
	}
	for i, m := range materials {
		sb.WriteString(templates.Material.Fill(map[string]string{
			"Index":    strconv.Itoa(i + 1),
			"Filename": m.Filename,
			"MIME":     m.MIME,
			"Text":     truncateRunes(strings.TrimSpace(m.Text), budget),
		}))
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " [truncated]"
}
