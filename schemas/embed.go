// Package schemas holds the JSON Schema documents for structured pipeline artifacts.
package schemas

import _ "embed"

// DeliverableSchema is the JSON Schema every generated deliverable must satisfy
//
//go:embed deliverable.schema.json
var DeliverableSchema string
