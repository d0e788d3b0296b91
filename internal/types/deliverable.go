// Package types provides type definitions for structured data used throughout the deliverable pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Deliverable is the schema-validated document produced by the generation step
type Deliverable struct {
	Title        string              `json:"title"`
	AssignmentID string              `json:"assignment_id"`
	Summary      string              `json:"summary"`
	Sections     []Section           `json:"sections"`
	Citations    []Citation          `json:"citations,omitempty"`
	Metadata     DeliverableMetadata `json:"metadata"`
}

// Section is one heading + body block of a deliverable
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Citation references an external source
type Citation struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DeliverableMetadata carries course context for the deliverable
type DeliverableMetadata struct {
	Course   string `json:"course"`
	DueAtISO string `json:"due_at_iso"`
}

// Material is the extracted text of an ingested source file, as handed to the generator
type Material struct {
	MaterialID   string `json:"material_id"`
	AssignmentID string `json:"assignment_id"`
	Filename     string `json:"filename"`
	MIME         string `json:"mime"`
	Text         string `json:"text"`
}
