package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/deliverable-builder/internal/types"
	rootschemas "github.com/jonathan/deliverable-builder/schemas"
)

var (
	deliverableOnce   sync.Once
	deliverableSchema *gojsonschema.Schema
	deliverableErr    error
)

func compiledDeliverableSchema() (*gojsonschema.Schema, error) {
	deliverableOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(rootschemas.DeliverableSchema)
		deliverableSchema, deliverableErr = gojsonschema.NewSchema(loader)
		if deliverableErr != nil {
			deliverableErr = &SchemaLoadError{
				Path:    "deliverable.schema.json",
				Message: "failed to compile embedded schema",
				Cause:   deliverableErr,
			}
		}
	})
	return deliverableSchema, deliverableErr
}

// ValidateDeliverable checks untrusted generator output against the deliverable
// schema and decodes it. Malformed JSON and every schema violation are reported
// together in a *ValidationError.
func ValidateDeliverable(raw []byte) (*types.Deliverable, error) {
	schema, err := compiledDeliverableSchema()
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &ValidationError{Errors: []FieldError{{Field: "(root)", Message: "document is empty"}}}
	}
	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "(root)", Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(decoded))
	if err != nil {
		return nil, &SchemaLoadError{
			Path:    "deliverable.schema.json",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	if err := resultError(result); err != nil {
		return nil, err
	}

	var d types.Deliverable
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "(root)", Message: fmt.Sprintf("failed to decode deliverable: %v", err)}}}
	}
	return &d, nil
}
