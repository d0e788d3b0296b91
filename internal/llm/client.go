package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// GeminiClient implements DeliverableGenerator with Google Gemini
type GeminiClient struct {
	client  *genai.Client
	config  *Config
	limiter *rate.Limiter
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	config = config.withDefaults()
	return &GeminiClient{
		client:  client,
		config:  config,
		limiter: newCallLimiter(config.RequestsPerMinute),
	}, nil
}

// GenerateDeliverable asks the model for a deliverable JSON object
func (c *GeminiClient) GenerateDeliverable(ctx context.Context, prompt string, materials []types.Material) (json.RawMessage, error) {
	assignmentID := ""
	if len(materials) > 0 {
		assignmentID = materials[0].AssignmentID
	}

	model := c.client.GenerativeModel(c.config.Model)
	model.SetTemperature(c.config.Temperature)
	model.SetMaxOutputTokens(c.config.MaxOutputTokens)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = deliverableResponseSchema()
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemInstruction())}}

	full := BuildDeliverablePrompt(prompt, assignmentID, materials, c.config.MaxMaterialChars)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &GenerationError{Model: c.config.Model, Message: "rate limiter error", Cause: err}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(full))
	if err != nil {
		return nil, &GenerationError{Model: c.config.Model, Message: "failed to generate content", Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &GenerationError{Model: c.config.Model, Message: "unusable response", Cause: err}
	}

	return json.RawMessage(CleanJSONBlock(text)), nil
}

// newCallLimiter allows perMinute calls per minute with a burst of one.
func newCallLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// deliverableResponseSchema constrains Gemini's structured output to the
// deliverable shape. The JSON Schema gate still runs on the result.
func deliverableResponseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	object := func(required []string, props map[string]*genai.Schema) *genai.Schema {
		return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
	}

	return object(
		[]string{"title", "assignment_id", "summary", "sections", "metadata"},
		map[string]*genai.Schema{
			"title":         str(),
			"assignment_id": str(),
			"summary":       str(),
			"sections": {
				Type:  genai.TypeArray,
				Items: object([]string{"heading", "body"}, map[string]*genai.Schema{"heading": str(), "body": str()}),
			},
			"citations": {
				Type:  genai.TypeArray,
				Items: object([]string{"label", "url"}, map[string]*genai.Schema{"label": str(), "url": str()}),
			},
			"metadata": object([]string{"course", "due_at_iso"}, map[string]*genai.Schema{"course": str(), "due_at_iso": str()}),
		},
	)
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
