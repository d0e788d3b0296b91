package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// DeliverableGenerator produces an untrusted deliverable JSON payload from a
// prompt and the ingested materials. Callers must schema-validate the result.
type DeliverableGenerator interface {
	GenerateDeliverable(ctx context.Context, prompt string, materials []types.Material) (json.RawMessage, error)
}

// GenerationError represents a failed model call or an unusable response
type GenerationError struct {
	Model   string
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	prefix := "generation error"
	if e.Model != "" {
		prefix = fmt.Sprintf("generation error (%s)", e.Model)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// StaticGenerator returns the same payload for every request. It backs the
// offline CLI mode where a deliverable JSON file stands in for the model.
type StaticGenerator struct {
	Payload json.RawMessage
}

// NewStaticGeneratorFromFile loads the payload from path
func NewStaticGeneratorFromFile(path string) (*StaticGenerator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deliverable payload %s: %w", path, err)
	}
	return &StaticGenerator{Payload: data}, nil
}

// GenerateDeliverable returns a copy of the configured payload after cleaning
// any markdown fences around it.
func (g *StaticGenerator) GenerateDeliverable(ctx context.Context, _ string, _ []types.Material) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(g.Payload) == 0 {
		return nil, &GenerationError{Model: string(ProviderStatic), Message: "no payload configured"}
	}
	return json.RawMessage(CleanJSONBlock(string(g.Payload))), nil
}

// NewGenerator creates a generator for the configured provider
func NewGenerator(ctx context.Context, config *Config, apiKey string) (DeliverableGenerator, error) {
	config = config.withDefaults()

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", config.Provider)
	}
}
